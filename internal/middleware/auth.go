package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/traininglog/internal/auth"
	"github.com/2beens/traininglog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

type identityChecker interface {
	Identify(ctx context.Context, token string) (string, error)
}

// AuthMiddlewareHandler resolves the caller of every request and stores the
// user id in the request context. When anonymousUserID is set, requests
// without a token act as that user instead of being rejected.
type AuthMiddlewareHandler struct {
	checker         identityChecker
	anonymousUserID string
	allowedPaths    map[string]bool
}

func NewAuthMiddlewareHandler(checker identityChecker, anonymousUserID string) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		checker:         checker,
		anonymousUserID: anonymousUserID,
		allowedPaths: map[string]bool{
			"/":       true,
			"/health": true,
		},
	}
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				if h.anonymousUserID == "" {
					log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
					http.Error(w, "no can do", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "missing-auth-token")
					return
				}
				span.SetAttributes(attribute.Bool("anonymous", true))
				span.SetStatus(codes.Ok, "anonymous")
				next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), h.anonymousUserID)))
				return
			}

			userID, err := h.checker.Identify(ctx, token)
			if err != nil {
				if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrSessionExpired) {
					log.Tracef("[invalid token] [auth middleware] unauthorized => %s: %s", r.URL.Path, err)
				} else {
					log.Errorf("[failed identity check] => %s: %s", r.URL.Path, err)
					span.RecordError(err)
				}
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "identify-failed")
				return
			}

			span.SetAttributes(attribute.String("user_id", userID))
			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
