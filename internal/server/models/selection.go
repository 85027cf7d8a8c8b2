package models

import (
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

// FlagID is the document id of a selection flag.
func FlagID(clientID, galleryID, mediaID string) string {
	return clientID + ":" + galleryID + ":" + mediaID
}

// SelectionFlag records that a client picked a media item in a gallery.
// A stored flag with Selected true is the only source of truth for a
// current selection; un-selecting deletes the flag.
type SelectionFlag struct {
	ClientID      string
	GalleryID     string
	MediaID       string
	Selected      bool
	Comment       string
	SelectionDate time.Time
}

func (f *SelectionFlag) ID() string {
	return FlagID(f.ClientID, f.GalleryID, f.MediaID)
}

func (f *SelectionFlag) Fields() map[string]any {
	return map[string]any{
		"clientId":      f.ClientID,
		"galleryId":     f.GalleryID,
		"mediaId":       f.MediaID,
		"selected":      f.Selected,
		"comment":       f.Comment,
		"selectionDate": timex.UnixMilli(f.SelectionDate),
	}
}

func FlagFromDocument(id string, fields map[string]any) (*SelectionFlag, error) {
	r := newFieldReader("selection", id, fields)
	f := &SelectionFlag{
		ClientID:      r.str("clientId", true),
		GalleryID:     r.str("galleryId", true),
		MediaID:       r.str("mediaId", true),
		Selected:      r.boolean("selected"),
		Comment:       r.str("comment", false),
		SelectionDate: r.time("selectionDate", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}
