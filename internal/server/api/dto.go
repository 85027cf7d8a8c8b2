package api

import (
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

type ClientDTO struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	GalleryIDs []string  `json:"galleryIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toClientDTO(c *models.Client) ClientDTO {
	ids := c.GalleryIDs
	if ids == nil {
		ids = []string{}
	}
	return ClientDTO{ID: c.ID, Email: c.Email, Name: c.Name, Phone: c.Phone, GalleryIDs: ids, CreatedAt: c.CreatedAt}
}

type CreateClientRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type UpdateClientRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type GrantDTO struct {
	GalleryID         string     `json:"galleryId"`
	ClientID          string     `json:"clientId"`
	AccessType        string     `json:"accessType"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
	SelectionDeadline *time.Time `json:"selectionDeadline,omitempty"`
	MaxSelections     *int       `json:"maxSelections,omitempty"`
	SelectionCount    int        `json:"selectionCount"`
	LastAccessed      *time.Time `json:"lastAccessed,omitempty"`
	AccessCode        string     `json:"accessCode,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// toGrantDTO omits the access code unless withCode is set; clients never
// see codes through their own session.
func toGrantDTO(g *models.AccessGrant, withCode bool) GrantDTO {
	d := GrantDTO{
		GalleryID:         g.GalleryID,
		ClientID:          g.ClientID,
		AccessType:        string(g.AccessType),
		ExpiryDate:        g.ExpiryDate,
		SelectionDeadline: g.SelectionDeadline,
		MaxSelections:     g.MaxSelections,
		SelectionCount:    g.SelectionCount,
		LastAccessed:      g.LastAccessed,
		CreatedAt:         g.CreatedAt,
	}
	if withCode {
		d.AccessCode = g.AccessCode
	}
	return d
}

type GrantRequest struct {
	AccessType             *string    `json:"accessType"`
	ExpiryDate             *time.Time `json:"expiryDate"`
	SelectionDeadline      *time.Time `json:"selectionDeadline"`
	MaxSelections          *int       `json:"maxSelections"`
	ClearExpiryDate        bool       `json:"clearExpiryDate"`
	ClearSelectionDeadline bool       `json:"clearSelectionDeadline"`
	ClearMaxSelections     bool       `json:"clearMaxSelections"`
}

func (r GrantRequest) settings() models.GrantSettings {
	s := models.GrantSettings{
		ExpiryDate:             r.ExpiryDate,
		SelectionDeadline:      r.SelectionDeadline,
		MaxSelections:          r.MaxSelections,
		ClearExpiryDate:        r.ClearExpiryDate,
		ClearSelectionDeadline: r.ClearSelectionDeadline,
		ClearMaxSelections:     r.ClearMaxSelections,
	}
	if r.AccessType != nil {
		t := models.AccessType(*r.AccessType)
		s.AccessType = &t
	}
	return s
}

type StudioLoginRequest struct {
	Operator string `json:"operator"`
	APIKey   string `json:"apiKey"`
}

type StudioLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionRequest struct {
	Code string `json:"code"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	GalleryID string    `json:"galleryId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SelectedMediaDTO struct {
	MediaID    string    `json:"mediaId"`
	Title      string    `json:"title,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	SelectedAt time.Time `json:"selectedAt"`
}

type SelectionResponse struct {
	Items         []SelectedMediaDTO `json:"items"`
	Count         int                `json:"count"`
	MaxSelections *int               `json:"maxSelections,omitempty"`
}

type ToggleRequest struct {
	Selected bool   `json:"selected"`
	Comment  string `json:"comment"`
}

type ReplaceRequest struct {
	MediaIDs []string `json:"mediaIds"`
	Comment  string   `json:"comment"`
}

type PackageDTO struct {
	ID           string     `json:"id"`
	GalleryID    string     `json:"galleryId"`
	ClientID     string     `json:"clientId"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	SelectionIDs []string   `json:"selectionIds"`
	Comments     string     `json:"comments,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	DeliveredAt  *time.Time `json:"deliveredAt,omitempty"`
}

func toPackageDTO(p *models.SelectionPackage) PackageDTO {
	return PackageDTO{
		ID:           p.ID,
		GalleryID:    p.GalleryID,
		ClientID:     p.ClientID,
		Name:         p.Name,
		Status:       string(p.Status),
		SelectionIDs: p.SelectionIDs,
		Comments:     p.Comments,
		CreatedAt:    p.CreatedAt,
		SubmittedAt:  p.SubmittedAt,
		ApprovedAt:   p.ApprovedAt,
		DeliveredAt:  p.DeliveredAt,
	}
}

func toPackageDTOs(ps []*models.SelectionPackage) []PackageDTO {
	out := make([]PackageDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPackageDTO(p))
	}
	return out
}

type CreatePackageRequest struct {
	Name     string `json:"name"`
	Comments string `json:"comments"`
	// Submit creates the package directly in the submitted status.
	Submit bool `json:"submit"`
}

type TransitionRequest struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

type LinksRequest struct {
	ExpirationHours int `json:"expirationHours"`
}

type LinksResponse struct {
	Links []models.DownloadLink `json:"links"`
}

type ReconcileResponse struct {
	Count int `json:"count"`
}
