// Package services contains the gallery selection business logic. This file
// implements AccessService, the registry of (gallery, client) grants.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/locks"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/repomanager"
)

const accessCodeAttempts = 5

// AccessService owns access grants: who may view or select in a gallery,
// until when and how many items.
type AccessService struct {
	repos   repomanager.RepositoryManager
	locker  locks.Locker
	log     logging.Logger
	now     func() time.Time
	newCode func() (string, error)
}

func NewAccessService(repos repomanager.RepositoryManager, locker locks.Locker, log logging.Logger) *AccessService {
	return &AccessService{
		repos:   repos,
		locker:  locker,
		log:     log.With("module", "access_service"),
		now:     time.Now,
		newCode: common.NewAccessCode,
	}
}

// Grant creates the grant for the pair or merges settings into the existing
// one. A new grant and the client's gallery set are written in one batch.
func (s *AccessService) Grant(ctx context.Context, galleryID, clientID string, settings models.GrantSettings) (string, error) {
	if galleryID == "" || clientID == "" {
		return "", fmt.Errorf("%w: gallery and client are required", common.ErrInvalidArgument)
	}
	if err := settings.Validate(); err != nil {
		return "", err
	}

	unlockClient, err := s.locker.Lock(ctx, locks.ClientKey(clientID))
	if err != nil {
		return "", err
	}
	defer unlockClient()
	unlockPair, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, clientID))
	if err != nil {
		return "", err
	}
	defer unlockPair()

	client, err := s.repos.Clients().Get(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("grant: client %s: %w", clientID, err)
	}
	if _, err := s.repos.Media().GetGallery(ctx, galleryID); err != nil {
		return "", fmt.Errorf("grant: gallery %s: %w", galleryID, err)
	}

	existing, err := s.repos.Grants().Get(ctx, galleryID, clientID)
	switch {
	case err == nil:
		return s.mergeGrant(ctx, client, existing, settings)
	case errors.Is(err, common.ErrorNotFound):
		return s.createGrant(ctx, client, galleryID, settings)
	default:
		return "", fmt.Errorf("grant: %w", err)
	}
}

func (s *AccessService) createGrant(ctx context.Context, client *models.Client, galleryID string, settings models.GrantSettings) (string, error) {
	unlockCode, err := s.locker.Lock(ctx, locks.CodeKey(galleryID))
	if err != nil {
		return "", err
	}
	defer unlockCode()

	code, err := s.uniqueCode(ctx, galleryID)
	if err != nil {
		return "", err
	}

	g := &models.AccessGrant{
		GalleryID:  galleryID,
		ClientID:   client.ID,
		AccessType: models.AccessView,
		AccessCode: code,
		CreatedAt:  s.now().UTC(),
	}
	settings.Apply(g)

	ops := []docstore.Op{
		s.repos.Grants().CreateOp(g),
		s.repos.Clients().SetGalleriesOp(client.ID, client.WithGallery(galleryID)),
	}
	if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
		return "", fmt.Errorf("grant: %w", err)
	}

	s.log.Info(ctx, "access granted", "gallery_id", galleryID, "client_id", client.ID, "access_type", g.AccessType)
	return g.ID(), nil
}

func (s *AccessService) mergeGrant(ctx context.Context, client *models.Client, g *models.AccessGrant, settings models.GrantSettings) (string, error) {
	settings.Apply(g)
	if g.MaxSelections != nil && g.SelectionCount > *g.MaxSelections {
		return "", &common.CapacityError{Limit: *g.MaxSelections, Requested: g.SelectionCount}
	}

	ops := []docstore.Op{s.repos.Grants().UpdateSettingsOp(g)}
	if !client.HasGallery(g.GalleryID) {
		ops = append(ops, s.repos.Clients().SetGalleriesOp(client.ID, client.WithGallery(g.GalleryID)))
	}
	if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
		return "", fmt.Errorf("grant update: %w", err)
	}

	s.log.Info(ctx, "access updated", "gallery_id", g.GalleryID, "client_id", g.ClientID, "access_type", g.AccessType)
	return g.ID(), nil
}

// Revoke removes the grant, the gallery from the client's set and the pair's
// selection flags in one batch. Packages are kept. Revoking a missing grant
// is a no-op.
func (s *AccessService) Revoke(ctx context.Context, galleryID, clientID string) error {
	unlockClient, err := s.locker.Lock(ctx, locks.ClientKey(clientID))
	if err != nil {
		return err
	}
	defer unlockClient()
	unlockPair, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, clientID))
	if err != nil {
		return err
	}
	defer unlockPair()

	if _, err := s.repos.Grants().Get(ctx, galleryID, clientID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("revoke: %w", err)
	}

	ops := []docstore.Op{s.repos.Grants().DeleteOp(galleryID, clientID)}

	client, err := s.repos.Clients().Get(ctx, clientID)
	switch {
	case err == nil:
		ops = append(ops, s.repos.Clients().SetGalleriesOp(clientID, client.WithoutGallery(galleryID)))
	case !errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("revoke: %w", err)
	}

	flags, err := s.repos.Selections().ListPair(ctx, clientID, galleryID)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	for _, f := range flags {
		ops = append(ops, s.repos.Selections().DeleteOp(f.ClientID, f.GalleryID, f.MediaID))
	}

	if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	s.log.Info(ctx, "access revoked", "gallery_id", galleryID, "client_id", clientID, "flags_removed", len(flags))
	return nil
}

// CheckSelectionAllowed reads the grant fresh and reports whether the client
// may change its selection. It returns the grant it checked.
func (s *AccessService) CheckSelectionAllowed(ctx context.Context, galleryID, clientID string, intendingToAdd bool) (*models.AccessGrant, error) {
	g, err := s.repos.Grants().Get(ctx, galleryID, clientID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: no grant for gallery %s", common.ErrNotAuthorized, galleryID)
		}
		return nil, err
	}

	now := s.now()
	if !g.AccessType.CanSelect() {
		return nil, fmt.Errorf("%w: %s access does not allow selection", common.ErrNotAuthorized, g.AccessType)
	}
	if g.Expired(now) {
		return nil, fmt.Errorf("%w: grant expired", common.ErrNotAuthorized)
	}
	if g.DeadlinePassed(now) {
		return nil, common.ErrDeadlineExpired
	}
	if intendingToAdd && g.Full() {
		return nil, &common.CapacityError{Limit: *g.MaxSelections, Requested: g.SelectionCount + 1}
	}
	return g, nil
}

// RedeemAccessCode resolves a code to the client it was issued to and
// records the access. Unknown and expired codes look the same to the caller.
func (s *AccessService) RedeemAccessCode(ctx context.Context, galleryID, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if galleryID == "" || code == "" {
		return "", common.ErrorNotFound
	}

	g, err := s.repos.Grants().GetByCode(ctx, galleryID, code)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	if g.Expired(now) {
		return "", common.ErrorNotFound
	}

	if err := s.repos.Grants().Touch(ctx, g, now); err != nil {
		return "", fmt.Errorf("redeem: %w", err)
	}

	s.log.Info(ctx, "access code redeemed", "gallery_id", galleryID, "client_id", g.ClientID)
	return g.ClientID, nil
}

// RegenerateAccessCode issues a fresh code for an existing grant.
func (s *AccessService) RegenerateAccessCode(ctx context.Context, galleryID, clientID string) (string, error) {
	unlock, err := s.locker.Lock(ctx, locks.ClientKey(clientID))
	if err != nil {
		return "", err
	}
	defer unlock()

	g, err := s.repos.Grants().Get(ctx, galleryID, clientID)
	if err != nil {
		return "", err
	}

	unlockCode, err := s.locker.Lock(ctx, locks.CodeKey(galleryID))
	if err != nil {
		return "", err
	}
	defer unlockCode()

	code, err := s.uniqueCode(ctx, galleryID)
	if err != nil {
		return "", err
	}
	if err := s.repos.Grants().SetAccessCode(ctx, g, code); err != nil {
		return "", fmt.Errorf("regenerate code: %w", err)
	}
	return code, nil
}

func (s *AccessService) Get(ctx context.Context, galleryID, clientID string) (*models.AccessGrant, error) {
	return s.repos.Grants().Get(ctx, galleryID, clientID)
}

func (s *AccessService) ListByGallery(ctx context.Context, galleryID string) ([]*models.AccessGrant, error) {
	return s.repos.Grants().ListByGallery(ctx, galleryID)
}

func (s *AccessService) ListByClient(ctx context.Context, clientID string) ([]*models.AccessGrant, error) {
	return s.repos.Grants().ListByClient(ctx, clientID)
}

// uniqueCode draws codes until one is unused within the gallery. Callers
// hold CodeKey(galleryID) until the code is written.
func (s *AccessService) uniqueCode(ctx context.Context, galleryID string) (string, error) {
	for i := 0; i < accessCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("access code: %w", err)
		}
		_, err = s.repos.Grants().GetByCode(ctx, galleryID, code)
		if errors.Is(err, common.ErrorNotFound) {
			return code, nil
		}
		if err != nil && !errors.Is(err, common.ErrConflict) {
			return "", fmt.Errorf("access code: %w", err)
		}
	}
	return "", fmt.Errorf("%w: no free access code after %d attempts", common.ErrConflict, accessCodeAttempts)
}
