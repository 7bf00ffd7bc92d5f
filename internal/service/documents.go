package service

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// DocumentService manages document metadata.
type DocumentService interface {
	Create(ctx context.Context, d *model.Document) (*model.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	Update(ctx context.Context, d *model.Document) (*model.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page repository.Page) ([]*model.Document, error)
	ListByFolder(ctx context.Context, folderID *uuid.UUID, page repository.Page) ([]*model.Document, error)
}

type DocumentServiceImpl struct {
	*CRUD[*model.Document]
	repo repository.DocumentRepository
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo repository.DocumentRepository, now func() time.Time) *DocumentServiceImpl {
	return &DocumentServiceImpl{CRUD: NewCRUD[*model.Document](repo, now, validateDocument), repo: repo}
}

func validateDocument(d *model.Document) error {
	if strings.TrimSpace(d.Title) == "" {
		return errs.Validation("empty title")
	}
	switch d.Status {
	case "", model.DocumentDraft, model.DocumentActive, model.DocumentArchived, model.DocumentDeleted:
		return nil
	}
	return errs.Validation("unknown document status %q", d.Status)
}

// Create stores a new document; status defaults to DRAFT.
func (s *DocumentServiceImpl) Create(ctx context.Context, d *model.Document) (*model.Document, error) {
	if d.Status == "" {
		d.Status = model.DocumentDraft
	}
	return s.CRUD.Create(ctx, d)
}

// ListByFolder returns documents filed in a folder; nil selects unfiled ones.
func (s *DocumentServiceImpl) ListByFolder(ctx context.Context, folderID *uuid.UUID, page repository.Page) ([]*model.Document, error) {
	return s.repo.ListByFolder(ctx, folderID, page)
}

// FolderService manages the folder tree.
type FolderService interface {
	Create(ctx context.Context, f *model.Folder) (*model.Folder, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Folder, error)
	Update(ctx context.Context, f *model.Folder) (*model.Folder, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page repository.Page) ([]*model.Folder, error)
	ListChildren(ctx context.Context, parentID *uuid.UUID) ([]*model.Folder, error)
}

type FolderServiceImpl struct {
	*CRUD[*model.Folder]
	repo repository.FolderRepository
}

// NewFolderService constructs FolderService.
func NewFolderService(repo repository.FolderRepository, now func() time.Time) *FolderServiceImpl {
	return &FolderServiceImpl{CRUD: NewCRUD[*model.Folder](repo, now, validateFolder), repo: repo}
}

func validateFolder(f *model.Folder) error {
	if strings.TrimSpace(f.Name) == "" {
		return errs.Validation("empty folder name")
	}
	if f.ParentID != nil && *f.ParentID == f.ID && f.ID != uuid.Nil {
		return errs.Validation("folder cannot be its own parent")
	}
	return nil
}

// ListChildren returns direct children of parentID; nil lists roots.
func (s *FolderServiceImpl) ListChildren(ctx context.Context, parentID *uuid.UUID) ([]*model.Folder, error) {
	return s.repo.ListChildren(ctx, parentID)
}

// TagService manages tags and their assignment to documents.
type TagService interface {
	Create(ctx context.Context, t *model.Tag) (*model.Tag, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Tag, error)
	Update(ctx context.Context, t *model.Tag) (*model.Tag, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page repository.Page) ([]*model.Tag, error)
	Assign(ctx context.Context, documentID, tagID uuid.UUID) error
	Unassign(ctx context.Context, documentID, tagID uuid.UUID) error
	ListForDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Tag, error)
}

type TagServiceImpl struct {
	*CRUD[*model.Tag]
	repo repository.TagRepository
	docs repository.DocumentRepository
	now  func() time.Time
}

// NewTagService constructs TagService.
func NewTagService(repo repository.TagRepository, docs repository.DocumentRepository, now func() time.Time) *TagServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &TagServiceImpl{CRUD: NewCRUD[*model.Tag](repo, now, validateTag), repo: repo, docs: docs, now: now}
}

func validateTag(t *model.Tag) error {
	if strings.TrimSpace(t.Name) == "" {
		return errs.Validation("empty tag name")
	}
	return nil
}

// Assign links an existing tag to an existing document. Repeated calls are no-ops.
func (s *TagServiceImpl) Assign(ctx context.Context, documentID, tagID uuid.UUID) error {
	if documentID == uuid.Nil || tagID == uuid.Nil {
		return errs.Validation("empty documentID/tagID")
	}
	if _, err := s.docs.Get(ctx, documentID); err != nil {
		return err
	}
	tag, err := s.repo.Get(ctx, tagID)
	if err != nil {
		return err
	}
	return s.repo.Assign(ctx, model.DocumentTag{
		DocumentID: documentID,
		TagID:      tagID,
		TenantID:   tag.TenantID,
		CreatedAt:  s.now().UTC(),
	})
}

// Unassign removes a tag from a document.
func (s *TagServiceImpl) Unassign(ctx context.Context, documentID, tagID uuid.UUID) error {
	if documentID == uuid.Nil || tagID == uuid.Nil {
		return errs.Validation("empty documentID/tagID")
	}
	return s.repo.Unassign(ctx, documentID, tagID)
}

// ListForDocument returns the tags of a document.
func (s *TagServiceImpl) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Tag, error) {
	return s.repo.ListForDocument(ctx, documentID)
}

// PermissionService stores document permission rows. No evaluation policy is applied.
type PermissionService interface {
	Create(ctx context.Context, p *model.DocumentPermission) (*model.DocumentPermission, error)
	Get(ctx context.Context, id uuid.UUID) (*model.DocumentPermission, error)
	Update(ctx context.Context, p *model.DocumentPermission) (*model.DocumentPermission, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentPermission, error)
}

type PermissionServiceImpl struct {
	*CRUD[*model.DocumentPermission]
	repo repository.PermissionRepository
}

// NewPermissionService constructs PermissionService.
func NewPermissionService(repo repository.PermissionRepository, now func() time.Time) *PermissionServiceImpl {
	return &PermissionServiceImpl{CRUD: NewCRUD[*model.DocumentPermission](repo, now, validatePermission), repo: repo}
}

func validatePermission(p *model.DocumentPermission) error {
	if p.DocumentID == uuid.Nil {
		return errs.Validation("empty documentID")
	}
	if strings.TrimSpace(p.Principal) == "" {
		return errs.Validation("empty principal")
	}
	switch p.Permission {
	case model.PermissionRead, model.PermissionWrite, model.PermissionDelete,
		model.PermissionShare, model.PermissionSign, model.PermissionAdmin:
		return nil
	}
	return errs.Validation("unknown permission %q", p.Permission)
}

// ListByDocument returns all permission rows of a document.
func (s *PermissionServiceImpl) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentPermission, error) {
	return s.repo.ListByDocument(ctx, documentID)
}

// DocumentSignatureService manages per-signer records.
type DocumentSignatureService interface {
	Create(ctx context.Context, s *model.DocumentSignature) (*model.DocumentSignature, error)
	Get(ctx context.Context, id uuid.UUID) (*model.DocumentSignature, error)
	Update(ctx context.Context, s *model.DocumentSignature) (*model.DocumentSignature, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentSignature, error)
}

type DocumentSignatureServiceImpl struct {
	*CRUD[*model.DocumentSignature]
	repo repository.DocumentSignatureRepository
}

// NewDocumentSignatureService constructs DocumentSignatureService.
func NewDocumentSignatureService(repo repository.DocumentSignatureRepository, now func() time.Time) *DocumentSignatureServiceImpl {
	return &DocumentSignatureServiceImpl{CRUD: NewCRUD[*model.DocumentSignature](repo, now, validateSignature), repo: repo}
}

func validateSignature(s *model.DocumentSignature) error {
	if s.DocumentID == uuid.Nil {
		return errs.Validation("empty documentID")
	}
	if strings.TrimSpace(s.SignerEmail) == "" {
		return errs.Validation("empty signer email")
	}
	if s.Status != "" && !s.Status.Valid() {
		return errs.Validation("unknown signature status %q", s.Status)
	}
	return nil
}

// Create stores a signer record; status defaults to PENDING.
func (s *DocumentSignatureServiceImpl) Create(ctx context.Context, sig *model.DocumentSignature) (*model.DocumentSignature, error) {
	if sig.Status == "" {
		sig.Status = model.SignaturePending
	}
	return s.CRUD.Create(ctx, sig)
}

// ListByDocument returns the signer records of a document.
func (s *DocumentSignatureServiceImpl) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentSignature, error) {
	return s.repo.ListByDocument(ctx, documentID)
}
