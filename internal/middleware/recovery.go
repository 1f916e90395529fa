package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/pkg"

	log "github.com/sirupsen/logrus"
)

// PanicRecovery turns a handler panic into a 500 and counts it per route, so
// a panicking write on /logs shows up apart from the read routes.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				route := routeTemplate(req)
				log.WithFields(log.Fields{
					"route":  route,
					"method": req.Method,
					"path":   req.URL.Path,
					"ip":     pkg.ClientIP(req),
				}).Errorf("http: panic serving request: %v\n%s", r, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.WithLabelValues(route, req.Method).Inc()
				}
				pkg.WriteJSON(respWriter, errorResponse{Error: "internal error"}, http.StatusInternalServerError)
			}()

			next.ServeHTTP(respWriter, req)
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
