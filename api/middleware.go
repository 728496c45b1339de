package api

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

type contextKey string

const userIDKey contextKey = "user_id"

// accessTokenParam carries the bearer credential of browser WebSocket clients,
// which cannot set headers on the upgrade request.
const accessTokenParam = "access_token"

// UserFrom returns the authenticated user of a request, empty when anonymous.
func UserFrom(ctx context.Context) domain.UserID {
	if v, ok := ctx.Value(userIDKey).(domain.UserID); ok {
		return v
	}
	return ""
}

func WithUser(ctx context.Context, user domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, user)
}

// Auth resolves the bearer token of every request into a user identity.
func Auth(resolver contract.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}
			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// QueryToken promotes the access_token query parameter to an Authorization
// header when the request carries none.
func QueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get(accessTokenParam); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RateLimit limits authenticated callers per user and anonymous ones per IP.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := UserFrom(r.Context()); user != "" {
				return "user:" + user.String(), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(windowLength)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// retryAfter is the window in whole seconds, at least one.
func retryAfter(window time.Duration) int {
	return max(1, int(math.Ceil(window.Seconds())))
}

// Logging logs one line per request once the handler returned.
func Logging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			log.Debug("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"bytes", wrapped.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
