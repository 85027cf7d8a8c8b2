package api

import (
	"net/http"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/auth"
	"github.com/go-chi/chi/v5"
)

// OpenSession redeems an access code for a gallery session token.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	galleryID := chi.URLParam(r, "galleryID")

	clientID, err := h.access.RedeemAccessCode(r.Context(), galleryID, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := auth.GenerateGalleryToken(clientID, galleryID, h.secret, h.tokenTTL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		ClientID:  clientID,
		GalleryID: galleryID,
		ExpiresAt: h.now().UTC().Add(h.tokenTTL),
	})
}

func (h *Handler) mustSession(w http.ResponseWriter, r *http.Request) (session, bool) {
	s, ok := sessionFrom(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_token", common.ErrInvalidToken.Error())
	}
	return s, ok
}

func (h *Handler) MyGrant(w http.ResponseWriter, r *http.Request) {
	s, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	g, err := h.access.Get(r.Context(), s.GalleryID, s.ClientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g, false))
}

func (h *Handler) MySelections(w http.ResponseWriter, r *http.Request) {
	s, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	h.writeSelection(w, r, s)
}

func (h *Handler) writeSelection(w http.ResponseWriter, r *http.Request, s session) {
	items, err := h.selections.CurrentSelections(r.Context(), s.ClientID, s.GalleryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.access.Get(r.Context(), s.GalleryID, s.ClientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := SelectionResponse{Items: make([]SelectedMediaDTO, 0, len(items)), Count: len(items), MaxSelections: g.MaxSelections}
	for _, m := range items {
		resp.Items = append(resp.Items, SelectedMediaDTO{MediaID: m.ID, Title: m.Title, Comment: m.Comment, SelectedAt: m.SelectedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.selections.Toggle(r.Context(), s.ClientID, s.GalleryID, chi.URLParam(r, "mediaID"), req.Selected, req.Comment); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelection(w, r, s)
}

func (h *Handler) ReplaceSelections(w http.ResponseWriter, r *http.Request) {
	s, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	var req ReplaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.selections.BulkReplace(r.Context(), s.ClientID, s.GalleryID, req.MediaIDs, req.Comment); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelection(w, r, s)
}

func (h *Handler) MyPackages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	list, err := h.packages.ListByClient(r.Context(), s.ClientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	mine := list[:0]
	for _, p := range list {
		if p.GalleryID == s.GalleryID {
			mine = append(mine, p)
		}
	}
	writeJSON(w, http.StatusOK, toPackageDTOs(mine))
}

func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	var req CreatePackageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	create := h.packages.Create
	if req.Submit {
		create = h.packages.Submit
	}
	p, err := create(r.Context(), s.GalleryID, s.ClientID, req.Name, req.Comments)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPackageDTO(p))
}
