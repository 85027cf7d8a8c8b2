// Package api exposes the gallery selection services as a JSON HTTP API.
//
// Studio routes live under /api/clients, /api/galleries and /api/packages
// and need a studio token from /api/studio/session. Clients redeem an access code at /api/galleries/{galleryID}/session and
// use the returned bearer token for everything under /api/gallery.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	clients    *services.ClientService
	access     *services.AccessService
	selections *services.SelectionService
	packages   *services.PackageService
	secret     []byte
	studioKey  string
	tokenTTL   time.Duration
	log        logging.Logger
	now        func() time.Time
}

func NewHandler(clients *services.ClientService, access *services.AccessService, selections *services.SelectionService,
	packages *services.PackageService, secretKey, studioKey string, tokenTTL time.Duration, log logging.Logger) *Handler {
	return &Handler{
		clients:    clients,
		access:     access,
		selections: selections,
		packages:   packages,
		secret:     []byte(secretKey),
		studioKey:  studioKey,
		tokenTTL:   tokenTTL,
		log:        log.With("module", "http_api"),
		now:        time.Now,
	}
}

// Routes builds the router. allowedOrigins configures CORS.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", common.AuthorizationHeaderName, "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/studio/session", h.StudioLogin)

		r.Route("/clients", func(r chi.Router) {
			r.Use(h.studioAuth)
			r.Post("/", h.CreateClient)
			r.Get("/", h.ListClients)
			r.Route("/{clientID}", func(r chi.Router) {
				r.Get("/", h.GetClient)
				r.Patch("/", h.UpdateClient)
				r.Delete("/", h.DeleteClient)
				r.Get("/grants", h.ListClientGrants)
				r.Get("/packages", h.ListClientPackages)
			})
		})

		r.Route("/galleries/{galleryID}", func(r chi.Router) {
			r.Post("/session", h.OpenSession)
			r.Group(func(r chi.Router) {
				r.Use(h.studioAuth)
				r.Get("/grants", h.ListGalleryGrants)
				r.Get("/packages", h.ListGalleryPackages)
				r.Route("/grants/{clientID}", func(r chi.Router) {
					r.Get("/", h.GetGrant)
					r.Put("/", h.PutGrant)
					r.Delete("/", h.RevokeGrant)
					r.Post("/code", h.RegenerateCode)
					r.Post("/reconcile", h.ReconcileSelection)
				})
			})
		})

		r.Route("/packages/{packageID}", func(r chi.Router) {
			r.Use(h.studioAuth)
			r.Get("/", h.GetPackage)
			r.Post("/status", h.TransitionPackage)
			r.Post("/links", h.GenerateLinks)
		})

		r.Route("/gallery", func(r chi.Router) {
			r.Use(h.galleryAuth)
			r.Get("/grant", h.MyGrant)
			r.Get("/selections", h.MySelections)
			r.Put("/selections", h.ReplaceSelections)
			r.Put("/selections/{mediaID}", h.ToggleSelection)
			r.Get("/packages", h.MyPackages)
			r.Post("/packages", h.CreatePackage)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status. Server-side failures are logged; the
// detail of a 500 is not exposed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	detail := err.Error()

	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		if status == http.StatusInternalServerError {
			detail = http.StatusText(status)
		}
	}

	d := APIErrorDetail{Code: code, Status: strconv.Itoa(status), Detail: detail}
	var capErr *common.CapacityError
	if errors.As(err, &capErr) {
		d.Excess = capErr.Excess()
	}
	writeErrorDetail(w, d)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(common.ErrInvalidArgument, err)
	}
	return nil
}
