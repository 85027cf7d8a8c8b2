package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/locks"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ClientUpdate lists the editable client fields. Nil fields are unchanged.
type ClientUpdate struct {
	Email *string
	Name  *string
	Phone *string
}

// ClientService is the client directory.
type ClientService struct {
	repos  repomanager.RepositoryManager
	locker locks.Locker
	log    logging.Logger
	now    func() time.Time
	newID  func() string
}

func NewClientService(repos repomanager.RepositoryManager, locker locks.Locker, log logging.Logger) *ClientService {
	return &ClientService{
		repos:  repos,
		locker: locker,
		log:    log.With("module", "client_service"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateOrGetByEmail returns the client registered under email, creating it
// if needed. Name and phone are only used on creation.
func (s *ClientService) CreateOrGetByEmail(ctx context.Context, email, name, phone string) (*models.Client, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email %q", common.ErrInvalidArgument, email)
	}

	unlock, err := s.locker.Lock(ctx, locks.EmailKey(email))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repos.Clients().GetByEmail(ctx, email)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("client lookup: %w", err)
	}

	c = &models.Client{
		ID:         s.newID(),
		Email:      email,
		Name:       strings.TrimSpace(name),
		Phone:      strings.TrimSpace(phone),
		GalleryIDs: []string{},
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repos.Clients().Save(ctx, c); err != nil {
		return nil, fmt.Errorf("client create: %w", err)
	}

	s.log.Info(ctx, "client created", "client_id", c.ID)
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	return s.repos.Clients().Get(ctx, id)
}

func (s *ClientService) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	return s.repos.Clients().GetByEmail(ctx, models.NormalizeEmail(email))
}

func (s *ClientService) List(ctx context.Context) ([]*models.Client, error) {
	return s.repos.Clients().List(ctx)
}

// Update applies the provided fields. Changing the email to one held by
// another client fails with ErrConflict.
func (s *ClientService) Update(ctx context.Context, id string, upd ClientUpdate) (*models.Client, error) {
	unlock, err := s.locker.Lock(ctx, locks.ClientKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repos.Clients().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: invalid email %q", common.ErrInvalidArgument, email)
		}
		if email != c.Email {
			unlockEmail, err := s.locker.Lock(ctx, locks.EmailKey(email))
			if err != nil {
				return nil, err
			}
			defer unlockEmail()

			other, err := s.repos.Clients().GetByEmail(ctx, email)
			switch {
			case err == nil && other.ID != id:
				return nil, fmt.Errorf("%w: email %q already registered", common.ErrConflict, email)
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return nil, fmt.Errorf("client update: %w", err)
			}
			c.Email = email
		}
	}
	if upd.Name != nil {
		c.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Phone != nil {
		c.Phone = strings.TrimSpace(*upd.Phone)
	}

	if err := s.repos.Clients().Save(ctx, c); err != nil {
		return nil, fmt.Errorf("client update: %w", err)
	}
	return c, nil
}

// Delete removes the client with its grants and selection flags in one
// batch. Clients with a package still under review are kept.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	unlock, err := s.locker.Lock(ctx, locks.ClientKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.repos.Clients().Get(ctx, id); err != nil {
		return err
	}

	grants, err := s.repos.Grants().ListByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("client delete: %w", err)
	}
	galleries := make([]string, 0, len(grants))
	for _, g := range grants {
		galleries = append(galleries, g.GalleryID)
	}
	sort.Strings(galleries)
	for _, galleryID := range galleries {
		unlockPair, err := s.locker.Lock(ctx, locks.SelectionKey(galleryID, id))
		if err != nil {
			return err
		}
		defer unlockPair()
	}

	pkgs, err := s.repos.Packages().ListByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("client delete: %w", err)
	}
	for _, p := range pkgs {
		if p.Status != models.StatusDelivered {
			return fmt.Errorf("%w: client has %s package %s", common.ErrConflict, p.Status, p.ID)
		}
	}

	flags, err := s.repos.Selections().ListByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("client delete: %w", err)
	}

	ops := make([]docstore.Op, 0, len(grants)+len(flags)+1)
	for _, g := range grants {
		ops = append(ops, s.repos.Grants().DeleteOp(g.GalleryID, g.ClientID))
	}
	for _, f := range flags {
		ops = append(ops, s.repos.Selections().DeleteOp(f.ClientID, f.GalleryID, f.MediaID))
	}
	ops = append(ops, s.repos.Clients().DeleteOp(id))

	if err := s.repos.Store().RunAtomicBatch(ctx, ops); err != nil {
		return fmt.Errorf("client delete: %w", err)
	}

	s.log.Info(ctx, "client deleted", "client_id", id, "grants", len(grants), "flags", len(flags))
	return nil
}
