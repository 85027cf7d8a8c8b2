package models

import (
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

// Client is a studio customer. GalleryIDs mirrors the galleries the client
// holds a grant for and is kept in sync by the access registry.
type Client struct {
	ID         string
	Email      string
	Name       string
	Phone      string
	GalleryIDs []string
	CreatedAt  time.Time
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Client) HasGallery(galleryID string) bool {
	return slices.Contains(c.GalleryIDs, galleryID)
}

// WithGallery returns the gallery set with galleryID added.
func (c *Client) WithGallery(galleryID string) []string {
	out := append([]string{}, c.GalleryIDs...)
	if !slices.Contains(out, galleryID) {
		out = append(out, galleryID)
	}
	return out
}

// WithoutGallery returns the gallery set with galleryID removed.
func (c *Client) WithoutGallery(galleryID string) []string {
	out := make([]string, 0, len(c.GalleryIDs))
	for _, id := range c.GalleryIDs {
		if id != galleryID {
			out = append(out, id)
		}
	}
	return out
}

func (c *Client) Fields() map[string]any {
	galleries := c.GalleryIDs
	if galleries == nil {
		galleries = []string{}
	}
	return map[string]any{
		"email":      c.Email,
		"name":       c.Name,
		"phone":      c.Phone,
		"galleryIds": galleries,
		"createdAt":  timex.UnixMilli(c.CreatedAt),
	}
}

func ClientFromDocument(id string, fields map[string]any) (*Client, error) {
	r := newFieldReader("client", id, fields)
	c := &Client{
		ID:         id,
		Email:      r.str("email", true),
		Name:       r.str("name", false),
		Phone:      r.str("phone", false),
		GalleryIDs: r.strings("galleryIds"),
		CreatedAt:  r.time("createdAt", false),
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}
