package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	SessionCookie = "session_id"
	UserIDHeader  = "X-User-ID"
)

type ctxKey int

const sessionKey ctxKey = iota

// SessionMiddleware resolves the session cookie, issuing a new one when it is missing or
// malformed, and reads the authenticated user id set by the upstream auth proxy.
func SessionMiddleware(ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(SessionCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					sessionID = c.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			session := domain.Session{ID: sessionID}
			if userID, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64); err == nil && userID > 0 {
				session.UserID = userID
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) domain.Session {
	if session, ok := ctx.Value(sessionKey).(domain.Session); ok {
		return session
	}
	return domain.Session{}
}

// RequestLogMiddleware adds the chi request id to the request logger.
func RequestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			l := zerolog.Ctx(r.Context())
			l.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
