package middleware

import (
	"net/http"
	"time"

	"github.com/2beens/traininglog/pkg"

	log "github.com/sirupsen/logrus"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			begin := time.Now()

			next.ServeHTTP(resp, r)

			log.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   resp.statusCode,
				"duration": time.Since(begin).String(),
				"ip":       pkg.ClientIP(r),
				"ua":       r.Header.Get("User-Agent"),
			}).Trace("request served")
		})
	}
}
