package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/audit"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// DocumentVersionService records immutable content versions.
type DocumentVersionService interface {
	// AddVersion stores v as the next version of its document.
	AddVersion(ctx context.Context, v *model.DocumentVersion) (*model.DocumentVersion, error)
	Get(ctx context.Context, id uuid.UUID) (*model.DocumentVersion, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentVersion, error)
}

type DocumentVersionServiceImpl struct {
	repo repository.VersionRepository
	now  func() time.Time
}

// NewDocumentVersionService constructs DocumentVersionService. A nil clock means time.Now.
func NewDocumentVersionService(repo repository.VersionRepository, now func() time.Time) *DocumentVersionServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &DocumentVersionServiceImpl{repo: repo, now: now}
}

// AddVersion numbers v after the latest stored version (1 for the first) and inserts it.
// Concurrent adds for the same document race on the unique version number; the loser
// gets errs.ErrAlreadyExists.
func (s *DocumentVersionServiceImpl) AddVersion(ctx context.Context, v *model.DocumentVersion) (*model.DocumentVersion, error) {
	if v.DocumentID == uuid.Nil {
		return nil, errs.Validation("empty documentID")
	}
	if strings.TrimSpace(v.FileName) == "" {
		return nil, errs.Validation("empty file name")
	}
	if v.StorageType == "" || v.StoragePath == "" {
		return nil, errs.Validation("empty storage location")
	}

	next := 1
	latest, err := s.repo.Latest(ctx, v.DocumentID)
	switch {
	case err == nil:
		next = latest.VersionNumber + 1
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	v.ID = id
	v.VersionNumber = next
	if v.FileExtension == "" {
		v.FileExtension = strings.TrimPrefix(path.Ext(v.FileName), ".")
	}
	v.CreatedAt = s.now().UTC()
	v.CreatedBy = audit.User(ctx)

	if err := s.repo.Insert(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *DocumentVersionServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.DocumentVersion, error) {
	if id == uuid.Nil {
		return nil, errs.Validation("empty id")
	}
	return s.repo.Get(ctx, id)
}

func (s *DocumentVersionServiceImpl) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentVersion, error) {
	return s.repo.ListByDocument(ctx, documentID)
}

// StorageExecutor is the storage routing used by ContentService.
type StorageExecutor interface {
	GenerateUploadURL(ctx context.Context, req ecm.UploadRequest) (ecm.UploadTicket, error)
	ConfirmUpload(ctx context.Context, loc ecm.Location) (ecm.UploadConfirmation, error)
	GenerateDownloadURL(ctx context.Context, loc ecm.Location, fileName string) (ecm.DownloadLink, error)
	DeleteDocument(ctx context.Context, loc ecm.Location) error
}

// Upload describes a file a client is about to upload for a document.
type Upload struct {
	DocumentID  uuid.UUID
	StorageType string
	FileName    string
	MimeType    string
	Size        int64
}

// Confirmation finalizes an upload into a document version.
type Confirmation struct {
	DocumentID    uuid.UUID
	Location      ecm.Location
	FileName      string
	ChangeSummary string
	Major         bool
}

// ContentService moves document bytes through the storage extensions.
type ContentService interface {
	RequestUpload(ctx context.Context, up Upload) (ecm.UploadTicket, error)
	ConfirmUpload(ctx context.Context, c Confirmation) (*model.DocumentVersion, error)
	DownloadURL(ctx context.Context, versionID uuid.UUID) (ecm.DownloadLink, error)
	DeleteContent(ctx context.Context, versionID uuid.UUID) error
}

type ContentServiceImpl struct {
	docs        repository.DocumentRepository
	versions    DocumentVersionService
	storage     StorageExecutor
	defaultType string
}

// NewContentService constructs ContentService. Uploads without a storage type
// use defaultType.
func NewContentService(docs repository.DocumentRepository, versions DocumentVersionService, storage StorageExecutor, defaultType string) *ContentServiceImpl {
	return &ContentServiceImpl{docs: docs, versions: versions, storage: storage, defaultType: defaultType}
}

// RequestUpload issues an upload ticket for an existing document. The object path is
// derived from the document ID and a fresh upload ID.
func (s *ContentServiceImpl) RequestUpload(ctx context.Context, up Upload) (ecm.UploadTicket, error) {
	if up.DocumentID == uuid.Nil {
		return ecm.UploadTicket{}, errs.Validation("empty documentID")
	}
	name := path.Base(strings.TrimSpace(up.FileName))
	if name == "" || name == "." || name == "/" {
		return ecm.UploadTicket{}, errs.Validation("empty file name")
	}
	if up.Size < 0 {
		return ecm.UploadTicket{}, errs.Validation("negative size")
	}
	if _, err := s.docs.Get(ctx, up.DocumentID); err != nil {
		return ecm.UploadTicket{}, err
	}
	storageType := up.StorageType
	if storageType == "" {
		storageType = s.defaultType
	}
	uploadID, err := uuid.NewV4()
	if err != nil {
		return ecm.UploadTicket{}, fmt.Errorf("generate id: %w", err)
	}
	return s.storage.GenerateUploadURL(ctx, ecm.UploadRequest{
		DocumentID:  up.DocumentID,
		StorageType: storageType,
		Path:        path.Join(up.DocumentID.String(), uploadID.String(), name),
		FileName:    name,
		MimeType:    up.MimeType,
		Size:        up.Size,
	})
}

// ConfirmUpload checks the stored object and records it as the next document version.
// The location must lie under the document's own prefix, as issued by RequestUpload.
func (s *ContentServiceImpl) ConfirmUpload(ctx context.Context, c Confirmation) (*model.DocumentVersion, error) {
	if c.DocumentID == uuid.Nil {
		return nil, errs.Validation("empty documentID")
	}
	if c.Location.Path == "" {
		return nil, errs.Validation("empty location")
	}
	if !ownedBy(c.DocumentID, c.Location.Path) {
		return nil, errs.Validation("location %q is outside document %s", c.Location.Path, c.DocumentID)
	}
	if _, err := s.docs.Get(ctx, c.DocumentID); err != nil {
		return nil, err
	}
	conf, err := s.storage.ConfirmUpload(ctx, c.Location)
	if err != nil {
		return nil, err
	}
	loc := conf.Location
	if loc.Path == "" {
		loc = c.Location
	}
	if !ownedBy(c.DocumentID, loc.Path) {
		return nil, errs.Validation("confirmed location %q is outside document %s", loc.Path, c.DocumentID)
	}
	if loc.StorageType == "" {
		loc.StorageType = c.Location.StorageType
	}
	name := c.FileName
	if name == "" {
		name = path.Base(loc.Path)
	}
	return s.versions.AddVersion(ctx, &model.DocumentVersion{
		DocumentID:    c.DocumentID,
		FileName:      name,
		MimeType:      conf.ContentType,
		FileSize:      conf.Size,
		StorageType:   loc.StorageType,
		StoragePath:   loc.Path,
		ChangeSummary: c.ChangeSummary,
		Major:         c.Major,
	})
}

// DownloadURL returns a time-limited link to a version's content.
func (s *ContentServiceImpl) DownloadURL(ctx context.Context, versionID uuid.UUID) (ecm.DownloadLink, error) {
	v, err := s.versions.Get(ctx, versionID)
	if err != nil {
		return ecm.DownloadLink{}, err
	}
	return s.storage.GenerateDownloadURL(ctx, versionLocation(v), v.FileName)
}

// DeleteContent removes a version's bytes from storage. The version row is kept.
func (s *ContentServiceImpl) DeleteContent(ctx context.Context, versionID uuid.UUID) error {
	v, err := s.versions.Get(ctx, versionID)
	if err != nil {
		return err
	}
	return s.storage.DeleteDocument(ctx, versionLocation(v))
}

// ownedBy reports whether p is a clean object key under documentID's prefix.
func ownedBy(documentID uuid.UUID, p string) bool {
	return path.Clean(p) == p && strings.HasPrefix(p, documentID.String()+"/")
}

func versionLocation(v *model.DocumentVersion) ecm.Location {
	return ecm.Location{StorageType: v.StorageType, Path: v.StoragePath}
}
