package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"salon/internal/auth"
	"salon/internal/domain"
	"salon/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	loggerKey
)

const requestIDHeader = "X-Request-ID"

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// loggerFrom returns the request-scoped logger, falling back to base.
func loggerFrom(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok {
		return l
	}
	return base
}

// loggingMiddleware tags each request with an id, logs its outcome and
// counts it by route pattern.
func loggingMiddleware(base *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLogger := base.With().Str("request_id", requestID).Logger()
		r = r.WithContext(context.WithValue(r.Context(), loggerKey, &reqLogger))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func rateLimitMiddleware(limiter *rateLimiter, next http.Handler) http.Handler {
	if !limiter.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(remoteHost(r)) {
			writeError(w, http.StatusTooManyRequests, "Demasiadas solicitudes, intenta en un momento")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// protect requires a valid bearer token whose role may call the route.
func (s *HTTPServer) protect(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := loggerFrom(r.Context(), s.logger)

		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeDomainError(w, logger, domain.ErrDenied)
			return
		}
		claims, err := s.deps.Tokens.Parse(raw)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		allowed, err := s.deps.Authorizer.Allowed(claims.Role, r.URL.Path, r.Method)
		if err != nil {
			logger.Error().Err(err).Msg("authorization check failed")
			writeDomainError(w, logger, err)
			return
		}
		if !allowed {
			logger.Warn().Str("subject", claims.Subject).Str("role", string(claims.Role)).Str("path", r.URL.Path).Msg("forbidden")
			writeDomainError(w, logger, domain.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
