package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

// PackageStatus is a step of the review lifecycle. Transitions only move
// one step forward: draft, submitted, approved, delivered.
type PackageStatus string

const (
	StatusDraft     PackageStatus = "draft"
	StatusSubmitted PackageStatus = "submitted"
	StatusApproved  PackageStatus = "approved"
	StatusDelivered PackageStatus = "delivered"
)

var statusOrder = []PackageStatus{StatusDraft, StatusSubmitted, StatusApproved, StatusDelivered}

func (s PackageStatus) rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s PackageStatus) Valid() bool {
	return s.rank() >= 0
}

// Next returns the immediate successor. Delivered has none.
func (s PackageStatus) Next() (PackageStatus, bool) {
	r := s.rank()
	if r < 0 || r == len(statusOrder)-1 {
		return "", false
	}
	return statusOrder[r+1], true
}

// Downloadable reports whether signed links may be issued in this status.
func (s PackageStatus) Downloadable() bool {
	return s == StatusApproved || s == StatusDelivered
}

// Notifies reports whether entering this status sends a message to the client.
func (s PackageStatus) Notifies() bool {
	return s == StatusApproved || s == StatusDelivered
}

// SelectionPackage is a frozen snapshot of a client's selection moving
// through review. SelectionIDs never change after creation and each
// timestamp is set once.
type SelectionPackage struct {
	ID           string
	GalleryID    string
	ClientID     string
	Name         string
	Status       PackageStatus
	SelectionIDs []string
	Comments     string
	CreatedAt    time.Time
	SubmittedAt  *time.Time
	ApprovedAt   *time.Time
	DeliveredAt  *time.Time
}

// Transition validates a move to next. It returns false when the package is
// already in that status, which callers treat as a no-op.
func (p *SelectionPackage) Transition(next PackageStatus, at time.Time) (bool, error) {
	if !next.Valid() {
		return false, fmt.Errorf("%w: unknown status %q", common.ErrInvalidArgument, next)
	}
	if next == p.Status {
		return false, nil
	}
	want, ok := p.Status.Next()
	if !ok || want != next {
		return false, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	p.stamp(next, at)
	return true, nil
}

func (p *SelectionPackage) stamp(status PackageStatus, at time.Time) {
	t := at.UTC()
	switch status {
	case StatusSubmitted:
		if p.SubmittedAt == nil {
			p.SubmittedAt = &t
		}
	case StatusApproved:
		if p.ApprovedAt == nil {
			p.ApprovedAt = &t
		}
	case StatusDelivered:
		if p.DeliveredAt == nil {
			p.DeliveredAt = &t
		}
	}
}

// StatusFields are the fields a transition rewrites.
func (p *SelectionPackage) StatusFields() map[string]any {
	return map[string]any{
		"status":      string(p.Status),
		"comments":    p.Comments,
		"submittedAt": millisOrNil(p.SubmittedAt),
		"approvedAt":  millisOrNil(p.ApprovedAt),
		"deliveredAt": millisOrNil(p.DeliveredAt),
	}
}

func (p *SelectionPackage) Fields() map[string]any {
	ids := p.SelectionIDs
	if ids == nil {
		ids = []string{}
	}
	fields := p.StatusFields()
	fields["galleryId"] = p.GalleryID
	fields["clientId"] = p.ClientID
	fields["name"] = p.Name
	fields["selectionIds"] = ids
	fields["createdAt"] = timex.UnixMilli(p.CreatedAt)
	return fields
}

func PackageFromDocument(id string, fields map[string]any) (*SelectionPackage, error) {
	r := newFieldReader("package", id, fields)
	p := &SelectionPackage{
		ID:           id,
		GalleryID:    r.str("galleryId", true),
		ClientID:     r.str("clientId", true),
		Name:         r.str("name", false),
		Status:       PackageStatus(r.str("status", true)),
		SelectionIDs: r.strings("selectionIds"),
		Comments:     r.str("comments", false),
		CreatedAt:    r.time("createdAt", true),
		SubmittedAt:  r.optTime("submittedAt"),
		ApprovedAt:   r.optTime("approvedAt"),
		DeliveredAt:  r.optTime("deliveredAt"),
	}
	if r.err != nil {
		return nil, r.err
	}
	if !p.Status.Valid() {
		return nil, fmt.Errorf("%w: package %q: unknown status %q", common.ErrInvalidDocument, id, p.Status)
	}
	return p, nil
}
