package models

import "time"

// Gallery is the photographer-owned album a grant refers to. Galleries and
// media are maintained by the CMS; this server only reads them, apart from
// the download counter.
type Gallery struct {
	ID   string
	Name string
}

func (g *Gallery) Fields() map[string]any {
	return map[string]any{"name": g.Name}
}

func GalleryFromDocument(id string, fields map[string]any) (*Gallery, error) {
	r := newFieldReader("gallery", id, fields)
	g := &Gallery{ID: id, Name: r.str("name", false)}
	if r.err != nil {
		return nil, r.err
	}
	return g, nil
}

// Media is an image in a gallery. StorageKey locates the original in object
// storage; when empty the media id is used.
type Media struct {
	ID            string
	GalleryID     string
	Title         string
	StorageKey    string
	DownloadCount int64
}

// StorageRef is the key handed to the URL signer.
func (m *Media) StorageRef() string {
	if m.StorageKey != "" {
		return m.StorageKey
	}
	return m.ID
}

func (m *Media) Fields() map[string]any {
	return map[string]any{
		"galleryId":     m.GalleryID,
		"title":         m.Title,
		"storageKey":    m.StorageKey,
		"downloadCount": m.DownloadCount,
	}
}

func MediaFromDocument(id string, fields map[string]any) (*Media, error) {
	r := newFieldReader("media", id, fields)
	m := &Media{
		ID:         id,
		GalleryID:  r.str("galleryId", true),
		Title:      r.str("title", false),
		StorageKey: r.str("storageKey", false),
	}
	m.DownloadCount, _ = r.number("downloadCount", false)
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// SelectedMedia is a media item decorated with the client's selection flag.
type SelectedMedia struct {
	Media
	Comment    string
	SelectedAt time.Time
}

// DownloadLink is a time-boxed signed URL for one delivered item.
type DownloadLink struct {
	ItemID    string    `json:"itemId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
