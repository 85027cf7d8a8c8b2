package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/locks"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/repomanager"
)

// SelectionService is the ledger of selection flags. Every mutation for a
// (client, gallery) pair runs under the pair lock, and the flag write and
// the grant counter change go out in a single batch, so the counter always
// equals the number of selected flags.
type SelectionService struct {
	repos  repomanager.RepositoryManager
	access *AccessService
	locker locks.Locker
	log    logging.Logger
	now    func() time.Time
}

func NewSelectionService(repos repomanager.RepositoryManager, access *AccessService, locker locks.Locker, log logging.Logger) *SelectionService {
	return &SelectionService{
		repos:  repos,
		access: access,
		locker: locker,
		log:    log.With("module", "selection_service"),
		now:    time.Now,
	}
}

// Toggle selects or un-selects one media item. Re-selecting keeps the
// counter and only refreshes the comment; un-selecting an absent item is a
// no-op.
func (s *SelectionService) Toggle(ctx context.Context, clientID, galleryID, mediaID string, selected bool, comment string) error {
	unlock, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, clientID))
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.access.CheckSelectionAllowed(ctx, galleryID, clientID, selected); err != nil {
		return err
	}

	existing, err := s.repos.Selections().Get(ctx, clientID, galleryID, mediaID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("toggle: %w", err)
	}
	present := err == nil && existing.Selected

	if !selected {
		if existing == nil {
			return nil
		}
		ops := []docstore.Op{s.repos.Selections().DeleteOp(clientID, galleryID, mediaID)}
		if present {
			ops = append(ops, s.repos.Grants().AdjustCountOp(galleryID, clientID, -1))
		}
		if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
			return fmt.Errorf("toggle: %w", err)
		}
		return nil
	}

	if present {
		return s.recomment(ctx, existing, comment)
	}

	if err := s.requireMedia(ctx, galleryID, mediaID); err != nil {
		return err
	}
	flag := &models.SelectionFlag{
		ClientID:      clientID,
		GalleryID:     galleryID,
		MediaID:       mediaID,
		Selected:      true,
		Comment:       comment,
		SelectionDate: s.now().UTC(),
	}
	ops := []docstore.Op{
		s.repos.Selections().SaveOp(flag),
		s.repos.Grants().AdjustCountOp(galleryID, clientID, 1),
	}
	if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	return nil
}

func (s *SelectionService) recomment(ctx context.Context, flag *models.SelectionFlag, comment string) error {
	if flag.Comment == comment {
		return nil
	}
	flag.Comment = comment
	if err := s.repos.Store().RunAtomicBatch(ctx, []docstore.Op{s.repos.Selections().SaveOp(flag)}); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	return nil
}

func (s *SelectionService) requireMedia(ctx context.Context, galleryID, mediaID string) error {
	m, err := s.repos.Media().Get(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("media %s: %w", mediaID, err)
	}
	if m.GalleryID != galleryID {
		return fmt.Errorf("media %s in gallery %s: %w", mediaID, galleryID, common.ErrorNotFound)
	}
	return nil
}

// CurrentSelections joins the selected flags with the gallery's media, in
// selection order. Flags whose media is gone are skipped.
func (s *SelectionService) CurrentSelections(ctx context.Context, clientID, galleryID string) ([]*models.SelectedMedia, error) {
	flags, err := s.repos.Selections().ListSelected(ctx, clientID, galleryID)
	if err != nil {
		return nil, fmt.Errorf("current selections: %w", err)
	}

	out := make([]*models.SelectedMedia, 0, len(flags))
	for _, f := range flags {
		m, err := s.repos.Media().Get(ctx, f.MediaID)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("current selections: %w", err)
		}
		if m.GalleryID != galleryID {
			continue
		}
		out = append(out, &models.SelectedMedia{Media: *m, Comment: f.Comment, SelectedAt: f.SelectionDate})
	}
	return out, nil
}

// BulkReplace swaps the whole selection for mediaIDs in one batch and sets
// the counter to the new size. Duplicate ids count once.
func (s *SelectionService) BulkReplace(ctx context.Context, clientID, galleryID string, mediaIDs []string, comment string) error {
	unlock, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, clientID))
	if err != nil {
		return err
	}
	defer unlock()

	g, err := s.access.CheckSelectionAllowed(ctx, galleryID, clientID, false)
	if err != nil {
		return err
	}

	ids := dedupe(mediaIDs)
	if g.MaxSelections != nil && len(ids) > *g.MaxSelections {
		return &common.CapacityError{Limit: *g.MaxSelections, Requested: len(ids)}
	}
	for _, id := range ids {
		if err := s.requireMedia(ctx, galleryID, id); err != nil {
			return err
		}
	}

	prior, err := s.repos.Selections().ListPair(ctx, clientID, galleryID)
	if err != nil {
		return fmt.Errorf("bulk replace: %w", err)
	}

	ops := make([]docstore.Op, 0, len(prior)+len(ids)+1)
	for _, f := range prior {
		ops = append(ops, s.repos.Selections().DeleteOp(f.ClientID, f.GalleryID, f.MediaID))
	}
	// Dates are a millisecond apart so listing by date keeps the given order.
	base := s.now().UTC()
	for i, id := range ids {
		ops = append(ops, s.repos.Selections().SaveOp(&models.SelectionFlag{
			ClientID:      clientID,
			GalleryID:     galleryID,
			MediaID:       id,
			Selected:      true,
			Comment:       comment,
			SelectionDate: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	ops = append(ops, s.repos.Grants().SetCountOp(galleryID, clientID, len(ids)))

	if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
		return fmt.Errorf("bulk replace: %w", err)
	}

	s.log.Info(ctx, "selection replaced", "gallery_id", galleryID, "client_id", clientID, "count", len(ids))
	return nil
}

// Count returns the number of selected flags for the pair.
func (s *SelectionService) Count(ctx context.Context, clientID, galleryID string) (int, error) {
	flags, err := s.repos.Selections().ListSelected(ctx, clientID, galleryID)
	if err != nil {
		return 0, err
	}
	return len(flags), nil
}

// Reconcile rewrites the grant counter to the flag count and returns it.
func (s *SelectionService) Reconcile(ctx context.Context, clientID, galleryID string) (int, error) {
	unlock, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, clientID))
	if err != nil {
		return 0, err
	}
	defer unlock()

	g, err := s.repos.Grants().Get(ctx, galleryID, clientID)
	if err != nil {
		return 0, err
	}
	n, err := s.Count(ctx, clientID, galleryID)
	if err != nil {
		return 0, err
	}
	if n == g.SelectionCount {
		return n, nil
	}

	s.log.Warn(ctx, "selection counter drift repaired",
		"gallery_id", galleryID, "client_id", clientID, "counter", g.SelectionCount, "flags", n)
	if err := s.repos.Store().RunAtomicBatch(ctx, []docstore.Op{s.repos.Grants().SetCountOp(galleryID, clientID, n)}); err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	return n, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
