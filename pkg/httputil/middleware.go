package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// Headers set by an upstream gateway when bearer tokens are not required
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorID   = "X-Actor-ID"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			requestID := GetRequestID(r.Context())

			log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Str("tenant_id", wrapped.tenantID).
				Str("actor", wrapped.actor).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	tenantID   string
	actor      string
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordIdentity lets tenant and auth middleware report who served the request
// to an outer Logger middleware.
func recordIdentity(w http.ResponseWriter, tenantID string, a *actor.Actor) {
	if rw, ok := w.(*responseWriter); ok {
		rw.tenantID = tenantID
		rw.actor = a.DisplayName()
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// TenantMiddleware extracts tenant context from headers set by an upstream
// gateway and adds it to the request context. Used when bearer tokens are
// not required; Authenticator.Middleware replaces it otherwise.
//
// Headers expected:
//   - X-Tenant-ID: owning tenant (required)
//   - X-Actor-ID, X-Actor-Name: the human performing the request (optional)
//
// Missing tenant context returns 403 Forbidden.
// Exception: /health endpoints are allowed without tenant context for monitoring.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isHealthPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := r.Header.Get(HeaderTenantID)
		if tenantID == "" {
			http.Error(w, `{"error":"missing tenant context"}`, http.StatusForbidden)
			return
		}

		ctx := tenant.WithTenantID(r.Context(), tenantID)

		var a *actor.Actor
		if name := r.Header.Get(HeaderActorName); name != "" {
			a = &actor.Actor{
				ID:       r.Header.Get(HeaderActorID),
				Name:     name,
				TenantID: tenantID,
			}
			ctx = actor.WithActor(ctx, a)
		}
		recordIdentity(w, tenantID, a)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isHealthPath(path string) bool {
	return path == "/health" || path == "/ready"
}
