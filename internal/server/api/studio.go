package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/auth"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// StudioLogin exchanges the shared studio key for a studio token. Without a
// configured key the studio routes stay closed.
func (h *Handler) StudioLogin(w http.ResponseWriter, r *http.Request) {
	if h.studioKey == "" {
		WriteAPIError(w, http.StatusForbidden, "studio_disabled", "studio access is not configured")
		return
	}
	var req StudioLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.studioKey)) != 1 {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "invalid studio key")
		return
	}
	if req.Operator == "" {
		h.writeError(w, r, fmt.Errorf("%w: operator is required", common.ErrInvalidArgument))
		return
	}

	token, err := auth.GenerateStudioToken(req.Operator, h.secret, h.tokenTTL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info(r.Context(), "studio session opened", "operator", req.Operator)
	writeJSON(w, http.StatusOK, StudioLoginResponse{Token: token, ExpiresAt: h.now().UTC().Add(h.tokenTTL)})
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.clients.CreateOrGetByEmail(r.Context(), req.Email, req.Name, req.Phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.clients.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]ClientDTO, 0, len(list))
	for _, c := range list {
		out = append(out, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.clients.Update(r.Context(), chi.URLParam(r, "clientID"),
		services.ClientUpdate{Email: req.Email, Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Delete(r.Context(), chi.URLParam(r, "clientID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListClientGrants(w http.ResponseWriter, r *http.Request) {
	list, err := h.access.ListByClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grantDTOs(list))
}

func (h *Handler) ListClientPackages(w http.ResponseWriter, r *http.Request) {
	list, err := h.packages.ListByClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTOs(list))
}

func (h *Handler) ListGalleryGrants(w http.ResponseWriter, r *http.Request) {
	list, err := h.access.ListByGallery(r.Context(), chi.URLParam(r, "galleryID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grantDTOs(list))
}

func grantDTOs(list []*models.AccessGrant) []GrantDTO {
	out := make([]GrantDTO, 0, len(list))
	for _, g := range list {
		out = append(out, toGrantDTO(g, true))
	}
	return out
}

func (h *Handler) ListGalleryPackages(w http.ResponseWriter, r *http.Request) {
	list, err := h.packages.ListByGallery(r.Context(), chi.URLParam(r, "galleryID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTOs(list))
}

func (h *Handler) GetGrant(w http.ResponseWriter, r *http.Request) {
	g, err := h.access.Get(r.Context(), chi.URLParam(r, "galleryID"), chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g, true))
}

// PutGrant creates the grant or merges the given settings into it.
func (h *Handler) PutGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	galleryID, clientID := chi.URLParam(r, "galleryID"), chi.URLParam(r, "clientID")

	if _, err := h.access.Grant(r.Context(), galleryID, clientID, req.settings()); err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.access.Get(r.Context(), galleryID, clientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g, true))
}

func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	if err := h.access.Revoke(r.Context(), chi.URLParam(r, "galleryID"), chi.URLParam(r, "clientID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.access.RegenerateAccessCode(r.Context(), chi.URLParam(r, "galleryID"), chi.URLParam(r, "clientID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessCode": code})
}

func (h *Handler) ReconcileSelection(w http.ResponseWriter, r *http.Request) {
	n, err := h.selections.Reconcile(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "galleryID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Count: n})
}

func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	p, err := h.packages.Get(r.Context(), chi.URLParam(r, "packageID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTO(p))
}

func (h *Handler) TransitionPackage(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.packages.Transition(r.Context(), chi.URLParam(r, "packageID"), models.PackageStatus(req.Status), req.Comments)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTO(p))
}

func (h *Handler) GenerateLinks(w http.ResponseWriter, r *http.Request) {
	var req LinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	links, err := h.packages.GenerateDownloadLinks(r.Context(), chi.URLParam(r, "packageID"), req.ExpirationHours)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if links == nil {
		links = []models.DownloadLink{}
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}
