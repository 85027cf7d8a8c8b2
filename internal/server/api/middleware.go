package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const sessionKey contextKey = "gallery_session"

// session identifies the (gallery, client) pair a bearer token was issued for.
type session struct {
	ClientID  string
	GalleryID string
}

func sessionFrom(ctx context.Context) (session, bool) {
	s, ok := ctx.Value(sessionKey).(session)
	return s, ok
}

func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get(common.AuthorizationHeaderName), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_token", "Authorization header format must be Bearer {token}")
		return "", false
	}
	return token, true
}

// studioAuth requires a studio token. Gallery session tokens are refused.
func (h *Handler) studioAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(w, r)
		if !ok {
			return
		}
		claims, err := auth.ParseStudioToken(token, h.secret)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := logging.ContextWith(r.Context(), "operator", claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// galleryAuth requires a valid gallery session token.
func (h *Handler) galleryAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(w, r)
		if !ok {
			return
		}

		claims, err := auth.ParseGalleryToken(token, h.secret)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session{ClientID: claims.ClientID, GalleryID: claims.GalleryID})
		ctx = logging.ContextWith(ctx, "gallery_id", claims.GalleryID, "client_id", claims.ClientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger tags the request context with its chi request id, so every
// log line written while serving it carries the id, then logs one summary line.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = logging.ContextWith(ctx, "request_id", id)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		h.log.Debug(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
