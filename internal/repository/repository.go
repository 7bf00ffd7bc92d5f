// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/model"
)

// Page bounds list queries. Limit <= 0 means the backend default.
type Page struct {
	Limit  int
	Offset int
}

// CRUD is the generic persistence contract shared by versioned entities.
type CRUD[T model.Entity] interface {
	// Get loads an entity by ID; errs.ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (T, error)
	// Insert stores a new entity.
	Insert(ctx context.Context, e T) error
	// Update overwrites mutable columns if the stored version equals expectedVersion
	// and increments it; errs.ErrVersionConflict otherwise.
	Update(ctx context.Context, e T, expectedVersion int64) error
	// Delete removes an entity by ID; errs.ErrNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns a page ordered by creation time.
	List(ctx context.Context, page Page) ([]T, error)
}

// DocumentRepository persists documents.
type DocumentRepository interface {
	CRUD[*model.Document]
	// ListByFolder returns documents in a folder; nil folder means unfiled.
	ListByFolder(ctx context.Context, folderID *uuid.UUID, page Page) ([]*model.Document, error)
}

// FolderRepository persists the folder tree.
type FolderRepository interface {
	CRUD[*model.Folder]
	// ListChildren returns direct children; nil parent means roots.
	ListChildren(ctx context.Context, parentID *uuid.UUID) ([]*model.Folder, error)
}

// TagRepository persists tags and their document assignments.
type TagRepository interface {
	CRUD[*model.Tag]
	Assign(ctx context.Context, dt model.DocumentTag) error
	Unassign(ctx context.Context, documentID, tagID uuid.UUID) error
	ListForDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Tag, error)
}

// PermissionRepository persists document permission rows.
type PermissionRepository interface {
	CRUD[*model.DocumentPermission]
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentPermission, error)
}

// VersionRepository persists immutable document versions.
type VersionRepository interface {
	Insert(ctx context.Context, v *model.DocumentVersion) error
	Get(ctx context.Context, id uuid.UUID) (*model.DocumentVersion, error)
	// Latest returns the highest version of a document; errs.ErrNotFound if none.
	Latest(ctx context.Context, documentID uuid.UUID) (*model.DocumentVersion, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentVersion, error)
}

// DocumentSignatureRepository persists per-signer records.
type DocumentSignatureRepository interface {
	CRUD[*model.DocumentSignature]
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentSignature, error)
}

// SignatureRequestRepository persists signature requests.
type SignatureRequestRepository interface {
	CRUD[*model.SignatureRequest]
	ListByStatus(ctx context.Context, status model.SignatureStatus) ([]*model.SignatureRequest, error)
	ListByDocumentSignatureID(ctx context.Context, signatureID uuid.UUID) ([]*model.SignatureRequest, error)
	// ListExpirable returns non-terminal requests whose expiration date is before now.
	ListExpirable(ctx context.Context, now time.Time) ([]*model.SignatureRequest, error)
}

// SignatureVerificationRepository keeps provider verification verdicts. Rows are append-only.
type SignatureVerificationRepository interface {
	Insert(ctx context.Context, v *model.SignatureVerification) error
	// ListByRequest returns the verdicts of a request, newest first.
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*model.SignatureVerification, error)
}
