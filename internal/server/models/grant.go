package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

// AccessType is the level of rights a grant confers. Levels are ordered:
// download implies select, select implies view.
type AccessType string

const (
	AccessView     AccessType = "view"
	AccessSelect   AccessType = "select"
	AccessDownload AccessType = "download"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessView, AccessSelect, AccessDownload:
		return true
	}
	return false
}

// CanSelect reports whether the level allows choosing images.
func (t AccessType) CanSelect() bool {
	return t == AccessSelect || t == AccessDownload
}

// GrantID is the document id of the grant for a (gallery, client) pair.
func GrantID(galleryID, clientID string) string {
	return galleryID + ":" + clientID
}

// AccessGrant links a client to a gallery. MaxSelections nil means unbounded.
type AccessGrant struct {
	GalleryID         string
	ClientID          string
	AccessType        AccessType
	ExpiryDate        *time.Time
	SelectionDeadline *time.Time
	MaxSelections     *int
	SelectionCount    int
	LastAccessed      *time.Time
	AccessCode        string
	CreatedAt         time.Time
}

func (g *AccessGrant) ID() string {
	return GrantID(g.GalleryID, g.ClientID)
}

func (g *AccessGrant) Expired(now time.Time) bool {
	return g.ExpiryDate != nil && g.ExpiryDate.Before(now)
}

func (g *AccessGrant) DeadlinePassed(now time.Time) bool {
	return g.SelectionDeadline != nil && g.SelectionDeadline.Before(now)
}

// Full reports whether one more selection would overshoot the cap.
func (g *AccessGrant) Full() bool {
	return g.MaxSelections != nil && g.SelectionCount >= *g.MaxSelections
}

func (g *AccessGrant) Fields() map[string]any {
	return map[string]any{
		"galleryId":         g.GalleryID,
		"clientId":          g.ClientID,
		"accessType":        string(g.AccessType),
		"expiryDate":        millisOrNil(g.ExpiryDate),
		"selectionDeadline": millisOrNil(g.SelectionDeadline),
		"maxSelections":     intOrNil(g.MaxSelections),
		"selectionCount":    g.SelectionCount,
		"lastAccessed":      millisOrNil(g.LastAccessed),
		"accessCode":        g.AccessCode,
		"createdAt":         timex.UnixMilli(g.CreatedAt),
	}
}

func GrantFromDocument(id string, fields map[string]any) (*AccessGrant, error) {
	r := newFieldReader("grant", id, fields)
	g := &AccessGrant{
		GalleryID:         r.str("galleryId", true),
		ClientID:          r.str("clientId", true),
		AccessType:        AccessType(r.str("accessType", true)),
		ExpiryDate:        r.optTime("expiryDate"),
		SelectionDeadline: r.optTime("selectionDeadline"),
		MaxSelections:     r.optInt("maxSelections"),
		SelectionCount:    r.integer("selectionCount"),
		LastAccessed:      r.optTime("lastAccessed"),
		AccessCode:        r.str("accessCode", true),
		CreatedAt:         r.time("createdAt", false),
	}
	if r.err != nil {
		return nil, r.err
	}
	if !g.AccessType.Valid() {
		return nil, fmt.Errorf("%w: grant %q: unknown access type %q", common.ErrInvalidDocument, id, g.AccessType)
	}
	if g.SelectionCount < 0 {
		return nil, fmt.Errorf("%w: grant %q: negative selection count", common.ErrInvalidDocument, id)
	}
	return g, nil
}

// GrantSettings carries the photographer-controlled part of a grant. Nil
// fields are left untouched when merged into an existing grant; the Clear
// flags reset the matching nullable field.
type GrantSettings struct {
	AccessType        *AccessType
	ExpiryDate        *time.Time
	SelectionDeadline *time.Time
	MaxSelections     *int

	ClearExpiryDate        bool
	ClearSelectionDeadline bool
	ClearMaxSelections     bool
}

func (s GrantSettings) Validate() error {
	if s.AccessType != nil && !s.AccessType.Valid() {
		return fmt.Errorf("%w: unknown access type %q", common.ErrInvalidArgument, *s.AccessType)
	}
	if s.MaxSelections != nil && *s.MaxSelections < 0 {
		return fmt.Errorf("%w: negative max selections", common.ErrInvalidArgument)
	}
	return nil
}

// Apply merges the settings into g.
func (s GrantSettings) Apply(g *AccessGrant) {
	if s.AccessType != nil {
		g.AccessType = *s.AccessType
	}
	switch {
	case s.ClearExpiryDate:
		g.ExpiryDate = nil
	case s.ExpiryDate != nil:
		t := s.ExpiryDate.UTC()
		g.ExpiryDate = &t
	}
	switch {
	case s.ClearSelectionDeadline:
		g.SelectionDeadline = nil
	case s.SelectionDeadline != nil:
		t := s.SelectionDeadline.UTC()
		g.SelectionDeadline = &t
	}
	switch {
	case s.ClearMaxSelections:
		g.MaxSelections = nil
	case s.MaxSelections != nil:
		n := *s.MaxSelections
		g.MaxSelections = &n
	}
}

// SettingsFields returns the document fields owned by GrantSettings, for a
// merge update that leaves the counter alone.
func (g *AccessGrant) SettingsFields() map[string]any {
	return map[string]any{
		"accessType":        string(g.AccessType),
		"expiryDate":        millisOrNil(g.ExpiryDate),
		"selectionDeadline": millisOrNil(g.SelectionDeadline),
		"maxSelections":     intOrNil(g.MaxSelections),
	}
}
