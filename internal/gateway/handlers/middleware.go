package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/database"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/models"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// KeyStore resolves bearer tokens to API keys.
type KeyStore interface {
	GetAPIKey(ctx context.Context, rawKey string) (*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, apiKeyID string) error
}

type Middleware struct {
	keys        KeyStore
	logger      *logrus.Logger
	corsOrigins []string
}

func NewMiddleware(keys KeyStore, logger *logrus.Logger, corsOrigins []string) *Middleware {
	return &Middleware{
		keys:        keys,
		logger:      logger,
		corsOrigins: corsOrigins,
	}
}

// APIKeyFromContext returns the key stored by AuthMiddleware.
func APIKeyFromContext(ctx context.Context) (*models.APIKey, bool) {
	apiKey, ok := ctx.Value(apiKeyContextKey).(*models.APIKey)
	return apiKey, ok && apiKey != nil
}

// WithAPIKey stores apiKey in ctx.
func WithAPIKey(ctx context.Context, apiKey *models.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyContextKey, apiKey)
}

// AuthMiddleware validates API keys
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract API key from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}

		// Parse Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
			return
		}

		apiKey, err := m.keys.GetAPIKey(r.Context(), strings.TrimSpace(parts[1]))
		if errors.Is(err, database.ErrInvalidAPIKey) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
			return
		}
		if err != nil {
			m.logger.WithError(err).Error("API key lookup failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "authentication temporarily unavailable")
			return
		}
		if apiKey.CallerID == "" {
			writeError(w, http.StatusForbidden, "forbidden", "API key is not bound to a user")
			return
		}

		if err := m.keys.UpdateAPIKeyLastUsed(r.Context(), apiKey.ID); err != nil {
			m.logger.WithField("api_key_id", apiKey.ID).WithError(err).Warn("Failed to update key usage")
		}

		next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), apiKey)))
	})
}

// RequestLogger writes one logrus entry per request
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}
		entry := m.logger.WithFields(fields)
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case ww.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	})
}

// CORSMiddleware handles CORS
func (m *Middleware) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := m.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, X-Request-ID")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) allowedOrigin(origin string) string {
	for _, allowed := range m.corsOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
