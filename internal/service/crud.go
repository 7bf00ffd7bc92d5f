// Package service contains the application use cases over repositories and extension executors.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/audit"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// CRUD implements create/read/update/delete for a versioned entity type.
// Audit columns are stamped here; values supplied by callers are ignored.
type CRUD[T model.Entity] struct {
	repo     repository.CRUD[T]
	now      func() time.Time
	validate func(T) error
}

// NewCRUD constructs a CRUD service. A nil clock means time.Now; validate may be nil.
func NewCRUD[T model.Entity](repo repository.CRUD[T], now func() time.Time, validate func(T) error) *CRUD[T] {
	if now == nil {
		now = time.Now
	}
	return &CRUD[T]{repo: repo, now: now, validate: validate}
}

// Create assigns a fresh ID, stamps audit fields and inserts e with version 1.
func (s *CRUD[T]) Create(ctx context.Context, e T) (T, error) {
	var zero T
	if s.validate != nil {
		if err := s.validate(e); err != nil {
			return zero, err
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return zero, fmt.Errorf("generate id: %w", err)
	}
	e.SetEntityID(id)

	user, ts := audit.User(ctx), s.now().UTC()
	a := e.AuditInfo()
	a.CreatedAt, a.UpdatedAt = ts, ts
	a.CreatedBy, a.UpdatedBy = user, user
	a.Version = 1

	if err := s.repo.Insert(ctx, e); err != nil {
		return zero, err
	}
	return e, nil
}

// Get loads an entity by ID.
func (s *CRUD[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	if id == uuid.Nil {
		var zero T
		return zero, errs.Validation("empty id")
	}
	return s.repo.Get(ctx, id)
}

// Update overwrites the mutable fields of an existing entity.
//
// Version 0 on e updates whatever is stored; any other value must match the
// stored version or errs.ErrVersionConflict is returned. Creation audit fields
// are always taken from the stored record.
func (s *CRUD[T]) Update(ctx context.Context, e T) (T, error) {
	var zero T
	id := e.EntityID()
	if id == uuid.Nil {
		return zero, errs.Validation("empty id")
	}
	if s.validate != nil {
		if err := s.validate(e); err != nil {
			return zero, err
		}
	}

	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	old, a := stored.AuditInfo(), e.AuditInfo()
	expected := a.Version
	if expected == 0 {
		expected = old.Version
	}
	if expected != old.Version {
		return zero, fmt.Errorf("%s: have %d, stored %d: %w", id, expected, old.Version, errs.ErrVersionConflict)
	}

	a.CreatedAt, a.CreatedBy = old.CreatedAt, old.CreatedBy
	a.UpdatedAt, a.UpdatedBy = s.now().UTC(), audit.User(ctx)
	if err := s.repo.Update(ctx, e, expected); err != nil {
		return zero, err
	}
	a.Version = expected + 1
	return e, nil
}

// Delete removes an existing entity; errs.ErrNotFound if absent.
func (s *CRUD[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.Validation("empty id")
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns a page of entities.
func (s *CRUD[T]) List(ctx context.Context, page repository.Page) ([]T, error) {
	return s.repo.List(ctx, page)
}
