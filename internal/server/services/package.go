package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/locks"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/notify"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/galleryselect/internal/server/storage"
	"github.com/google/uuid"
)

// PackageService drives selection packages through review and delivery.
type PackageService struct {
	repos      repomanager.RepositoryManager
	selections *SelectionService
	signer     storage.Signer
	sink       notify.Sink
	locker     locks.Locker
	log        logging.Logger
	now        func() time.Time
	newID      func() string
}

func NewPackageService(repos repomanager.RepositoryManager, selections *SelectionService, signer storage.Signer,
	sink notify.Sink, locker locks.Locker, log logging.Logger) *PackageService {
	return &PackageService{
		repos:      repos,
		selections: selections,
		signer:     signer,
		sink:       sink,
		locker:     locker,
		log:        log.With("module", "package_service"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Create snapshots the client's current selection into a draft package.
func (s *PackageService) Create(ctx context.Context, galleryID, clientID, name, comments string) (*models.SelectionPackage, error) {
	return s.create(ctx, galleryID, clientID, name, comments, models.StatusDraft)
}

// Submit is the single-call flow: the package starts out submitted.
func (s *PackageService) Submit(ctx context.Context, galleryID, clientID, name, comments string) (*models.SelectionPackage, error) {
	return s.create(ctx, galleryID, clientID, name, comments, models.StatusSubmitted)
}

func (s *PackageService) create(ctx context.Context, galleryID, clientID, name, comments string, status models.PackageStatus) (*models.SelectionPackage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: package name is required", common.ErrInvalidArgument)
	}

	unlock, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, clientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.selections.CurrentSelections(ctx, clientID, galleryID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, common.ErrEmptySelection
	}

	ids := make([]string, 0, len(current))
	for _, m := range current {
		ids = append(ids, m.ID)
	}

	now := s.now().UTC()
	p := &models.SelectionPackage{
		ID:           s.newID(),
		GalleryID:    galleryID,
		ClientID:     clientID,
		Name:         name,
		Status:       status,
		SelectionIDs: ids,
		Comments:     comments,
		CreatedAt:    now,
	}
	if status == models.StatusSubmitted {
		p.SubmittedAt = &now
	}

	if err := s.repos.Packages().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("package create: %w", err)
	}

	s.log.Info(ctx, "package created", "package_id", p.ID, "gallery_id", galleryID, "client_id", clientID,
		"status", p.Status, "items", len(ids))
	return p, nil
}

// Transition moves the package one step forward. Asking for the current
// status is a no-op. Entering approved or delivered notifies the client
// after the change is stored; notification failures are only logged.
func (s *PackageService) Transition(ctx context.Context, packageID string, next models.PackageStatus, comments string) (*models.SelectionPackage, error) {
	p, changed, err := s.transition(ctx, packageID, next, comments)
	if err != nil {
		return nil, err
	}
	if changed && next.Notifies() {
		s.notifyClient(ctx, p)
	}
	return p, nil
}

func (s *PackageService) transition(ctx context.Context, packageID string, next models.PackageStatus, comments string) (*models.SelectionPackage, bool, error) {
	unlock, err := s.locker.Lock(ctx, locks.PackageKey(packageID))
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	p, err := s.repos.Packages().Get(ctx, packageID)
	if err != nil {
		return nil, false, err
	}

	changed, err := p.Transition(next, s.now())
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return p, false, nil
	}
	if comments != "" {
		p.Comments = comments
	}

	if err := s.repos.Packages().UpdateStatus(ctx, p); err != nil {
		return nil, false, fmt.Errorf("package transition: %w", err)
	}

	s.log.Info(ctx, "package status changed", "package_id", p.ID, "status", p.Status)
	return p, true, nil
}

func (s *PackageService) notifyClient(ctx context.Context, p *models.SelectionPackage) {
	log := s.log.With("package_id", p.ID, "client_id", p.ClientID)

	client, err := s.repos.Clients().Get(ctx, p.ClientID)
	if err != nil {
		log.Warn(ctx, "notification skipped: client lookup failed", "error", err)
		return
	}

	galleryName := p.GalleryID
	if g, err := s.repos.Media().GetGallery(ctx, p.GalleryID); err == nil && g.Name != "" {
		galleryName = g.Name
	}

	subject := fmt.Sprintf("Your selection %q is %s", p.Name, p.Status)
	body := fmt.Sprintf("Hello %s,\n\nyour selection %q from the gallery %q is now %s (%d images).\n",
		displayName(client), p.Name, galleryName, p.Status, len(p.SelectionIDs))

	if err := s.sink.Send(ctx, client.Email, subject, body); err != nil {
		log.Warn(ctx, "notification failed", "status", p.Status, "error", err)
	}
}

func displayName(c *models.Client) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}

// GenerateDownloadLinks signs one URL per snapshot item and marks the package
// delivered. Items that cannot be signed are left out. When none can be
// signed the package keeps its status and the call fails as retryable.
func (s *PackageService) GenerateDownloadLinks(ctx context.Context, packageID string, expirationHours int) ([]models.DownloadLink, error) {
	if expirationHours <= 0 {
		return nil, fmt.Errorf("%w: expiration must be positive", common.ErrInvalidArgument)
	}

	p, err := s.repos.Packages().Get(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !p.Status.Downloadable() {
		return nil, fmt.Errorf("%w: package is %s", common.ErrPackageNotApproved, p.Status)
	}

	expiration := time.Duration(expirationHours) * time.Hour
	expiresAt := s.now().UTC().Add(expiration)
	log := s.log.With("package_id", p.ID)

	links := make([]models.DownloadLink, 0, len(p.SelectionIDs))
	for _, itemID := range p.SelectionIDs {
		m, err := s.repos.Media().Get(ctx, itemID)
		if err != nil {
			log.Warn(ctx, "download link skipped: media lookup failed", "item_id", itemID, "error", err)
			continue
		}

		url, err := s.signer.SignURL(ctx, m.StorageRef(), expiration)
		if err != nil {
			log.Warn(ctx, "download link skipped: signing failed", "item_id", itemID, "error", err)
			continue
		}

		if err := s.repos.Media().IncrementDownloads(ctx, itemID); err != nil {
			log.Warn(ctx, "download tracking failed", "item_id", itemID, "error", err)
		}

		links = append(links, models.DownloadLink{ItemID: itemID, URL: url, ExpiresAt: expiresAt})
	}

	if len(links) == 0 && len(p.SelectionIDs) > 0 {
		return nil, fmt.Errorf("%w: no download link issued for %d items", common.ErrStoreUnavailable, len(p.SelectionIDs))
	}

	if _, err := s.Transition(ctx, packageID, models.StatusDelivered, ""); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *PackageService) Get(ctx context.Context, packageID string) (*models.SelectionPackage, error) {
	return s.repos.Packages().Get(ctx, packageID)
}

func (s *PackageService) ListByGallery(ctx context.Context, galleryID string) ([]*models.SelectionPackage, error) {
	return s.repos.Packages().ListByGallery(ctx, galleryID)
}

func (s *PackageService) ListByClient(ctx context.Context, clientID string) ([]*models.SelectionPackage, error) {
	return s.repos.Packages().ListByClient(ctx, clientID)
}
