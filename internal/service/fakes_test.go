package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// memRepo is an in-memory repository.CRUD that copies rows in and out like a database.
type memRepo[T model.Entity] struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]T
	clone func(T) T

	gets, inserts, updates, deletes int
	// failUpdateAt makes the n-th Update call (1-based) fail with updateErr.
	failUpdateAt int
	updateErr    error
}

func newMemRepo[T model.Entity](clone func(T) T) *memRepo[T] {
	return &memRepo[T]{rows: map[uuid.UUID]T{}, clone: clone}
}

func (m *memRepo[T]) Get(_ context.Context, id uuid.UUID) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.rows[id]
	if !ok {
		var zero T
		return zero, errs.ErrNotFound
	}
	return m.clone(v), nil
}

func (m *memRepo[T]) Insert(_ context.Context, e T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if _, ok := m.rows[e.EntityID()]; ok {
		return errs.ErrAlreadyExists
	}
	m.rows[e.EntityID()] = m.clone(e)
	return nil
}

func (m *memRepo[T]) Update(_ context.Context, e T, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failUpdateAt > 0 && m.updates == m.failUpdateAt {
		return m.updateErr
	}
	cur, ok := m.rows[e.EntityID()]
	if !ok || cur.AuditInfo().Version != expectedVersion {
		return errs.ErrVersionConflict
	}
	c := m.clone(e)
	c.AuditInfo().Version = expectedVersion + 1
	m.rows[e.EntityID()] = c
	return nil
}

func (m *memRepo[T]) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if _, ok := m.rows[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo[T]) List(_ context.Context, _ repository.Page) ([]T, error) {
	return m.filter(func(T) bool { return true }), nil
}

func (m *memRepo[T]) filter(keep func(T) bool) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []T
	for _, v := range m.rows {
		if keep(v) {
			out = append(out, m.clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EntityID().String() < out[j].EntityID().String()
	})
	return out
}

// put stores e directly, bypassing counters.
func (m *memRepo[T]) put(e T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[e.EntityID()] = m.clone(e)
}

// row returns the stored copy of id.
func (m *memRepo[T]) row(id uuid.UUID) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clone(m.rows[id])
}

func (m *memRepo[T]) calls() int { return m.gets + m.inserts + m.updates + m.deletes }

type fakeDocs struct{ *memRepo[*model.Document] }

var _ repository.DocumentRepository = fakeDocs{}

func newFakeDocs() fakeDocs {
	return fakeDocs{newMemRepo(func(d *model.Document) *model.Document { c := *d; return &c })}
}

func (f fakeDocs) ListByFolder(_ context.Context, folderID *uuid.UUID, _ repository.Page) ([]*model.Document, error) {
	return f.filter(func(d *model.Document) bool {
		if folderID == nil {
			return d.FolderID == nil
		}
		return d.FolderID != nil && *d.FolderID == *folderID
	}), nil
}

type fakeTags struct {
	*memRepo[*model.Tag]
	assigned []model.DocumentTag
}

var _ repository.TagRepository = (*fakeTags)(nil)

func newFakeTags() *fakeTags {
	return &fakeTags{memRepo: newMemRepo(func(t *model.Tag) *model.Tag { c := *t; return &c })}
}

func (f *fakeTags) Assign(_ context.Context, dt model.DocumentTag) error {
	for _, a := range f.assigned {
		if a.DocumentID == dt.DocumentID && a.TagID == dt.TagID {
			return nil
		}
	}
	f.assigned = append(f.assigned, dt)
	return nil
}

func (f *fakeTags) Unassign(_ context.Context, documentID, tagID uuid.UUID) error {
	for i, a := range f.assigned {
		if a.DocumentID == documentID && a.TagID == tagID {
			f.assigned = append(f.assigned[:i], f.assigned[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeTags) ListForDocument(_ context.Context, documentID uuid.UUID) ([]*model.Tag, error) {
	var out []*model.Tag
	for _, a := range f.assigned {
		if a.DocumentID == documentID {
			out = append(out, f.row(a.TagID))
		}
	}
	return out, nil
}

type fakeSigs struct{ *memRepo[*model.DocumentSignature] }

var _ repository.DocumentSignatureRepository = fakeSigs{}

func newFakeSigs() fakeSigs {
	return fakeSigs{newMemRepo(func(s *model.DocumentSignature) *model.DocumentSignature { c := *s; return &c })}
}

func (f fakeSigs) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*model.DocumentSignature, error) {
	return f.filter(func(s *model.DocumentSignature) bool { return s.DocumentID == documentID }), nil
}

type fakeRequests struct{ *memRepo[*model.SignatureRequest] }

var _ repository.SignatureRequestRepository = fakeRequests{}

func newFakeRequests() fakeRequests {
	return fakeRequests{newMemRepo(func(r *model.SignatureRequest) *model.SignatureRequest { c := *r; return &c })}
}

func (f fakeRequests) ListByStatus(_ context.Context, status model.SignatureStatus) ([]*model.SignatureRequest, error) {
	return f.filter(func(r *model.SignatureRequest) bool { return r.Status == status }), nil
}

func (f fakeRequests) ListByDocumentSignatureID(_ context.Context, id uuid.UUID) ([]*model.SignatureRequest, error) {
	return f.filter(func(r *model.SignatureRequest) bool { return r.DocumentSignatureID == id }), nil
}

// ListExpirable is deliberately loose: it returns every row with an expiration
// date so that the service-side filter is exercised.
func (f fakeRequests) ListExpirable(_ context.Context, _ time.Time) ([]*model.SignatureRequest, error) {
	return f.filter(func(r *model.SignatureRequest) bool { return r.ExpirationDate != nil }), nil
}

type fakeVersions struct {
	rows      []*model.DocumentVersion
	latestErr error
}

var _ repository.VersionRepository = (*fakeVersions)(nil)

func (f *fakeVersions) Insert(_ context.Context, v *model.DocumentVersion) error {
	for _, r := range f.rows {
		if r.DocumentID == v.DocumentID && r.VersionNumber == v.VersionNumber {
			return errs.ErrAlreadyExists
		}
	}
	c := *v
	f.rows = append(f.rows, &c)
	return nil
}

func (f *fakeVersions) Get(_ context.Context, id uuid.UUID) (*model.DocumentVersion, error) {
	for _, r := range f.rows {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeVersions) Latest(_ context.Context, documentID uuid.UUID) (*model.DocumentVersion, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	var best *model.DocumentVersion
	for _, r := range f.rows {
		if r.DocumentID == documentID && (best == nil || r.VersionNumber > best.VersionNumber) {
			best = r
		}
	}
	if best == nil {
		return nil, errs.ErrNotFound
	}
	c := *best
	return &c, nil
}

func (f *fakeVersions) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*model.DocumentVersion, error) {
	var out []*model.DocumentVersion
	for _, r := range f.rows {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSignatureExec struct {
	sent     []ecm.SignatureRequest
	checked  []ecm.SignatureRequest
	canceled []ecm.SignatureRequest

	sendRes  ecm.SendResult
	sendErr  error
	checkRes ecm.StatusResult
	cancelEr error

	verified   []ecm.SignatureRequest
	verifyRes  ecm.VerificationResult
	verifyErr  error
	signers    []ecm.SignerStatus
	signersErr error
}

func (f *fakeSignatureExec) Send(_ context.Context, req ecm.SignatureRequest) (ecm.SendResult, error) {
	f.sent = append(f.sent, req)
	return f.sendRes, f.sendErr
}

func (f *fakeSignatureExec) CheckStatus(_ context.Context, req ecm.SignatureRequest) (ecm.StatusResult, error) {
	f.checked = append(f.checked, req)
	return f.checkRes, nil
}

func (f *fakeSignatureExec) Cancel(_ context.Context, req ecm.SignatureRequest) error {
	f.canceled = append(f.canceled, req)
	return f.cancelEr
}

func (f *fakeSignatureExec) Verify(_ context.Context, req ecm.SignatureRequest) (ecm.VerificationResult, error) {
	f.verified = append(f.verified, req)
	return f.verifyRes, f.verifyErr
}

func (f *fakeSignatureExec) FetchSigners(_ context.Context, _ ecm.SignatureRequest) ([]ecm.SignerStatus, error) {
	return f.signers, f.signersErr
}

// fakeVerifications keeps verdicts in insertion order.
type fakeVerifications struct {
	rows      []*model.SignatureVerification
	insertErr error
}

var _ repository.SignatureVerificationRepository = (*fakeVerifications)(nil)

func (f *fakeVerifications) Insert(_ context.Context, v *model.SignatureVerification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	c := *v
	f.rows = append(f.rows, &c)
	return nil
}

func (f *fakeVerifications) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*model.SignatureVerification, error) {
	var out []*model.SignatureVerification
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].SignatureRequestID == requestID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

type fakeStorageExec struct {
	uploads   []ecm.UploadRequest
	confirmed []ecm.Location
	downloads []ecm.Location
	deleted   []ecm.Location

	confirmRes ecm.UploadConfirmation
}

func (f *fakeStorageExec) GenerateUploadURL(_ context.Context, req ecm.UploadRequest) (ecm.UploadTicket, error) {
	f.uploads = append(f.uploads, req)
	return ecm.UploadTicket{URL: "https://store.example/" + req.Path, Method: "PUT",
		Location: ecm.Location{StorageType: req.StorageType, Path: req.Path}}, nil
}

func (f *fakeStorageExec) ConfirmUpload(_ context.Context, loc ecm.Location) (ecm.UploadConfirmation, error) {
	f.confirmed = append(f.confirmed, loc)
	return f.confirmRes, nil
}

func (f *fakeStorageExec) GenerateDownloadURL(_ context.Context, loc ecm.Location, fileName string) (ecm.DownloadLink, error) {
	f.downloads = append(f.downloads, loc)
	return ecm.DownloadLink{URL: "https://store.example/" + loc.Path + "?name=" + fileName}, nil
}

func (f *fakeStorageExec) DeleteDocument(_ context.Context, loc ecm.Location) error {
	f.deleted = append(f.deleted, loc)
	return nil
}

// clock is a settable test clock.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fakeFolders struct{ *memRepo[*model.Folder] }

func (f fakeFolders) ListChildren(_ context.Context, parentID *uuid.UUID) ([]*model.Folder, error) {
	return f.filter(func(x *model.Folder) bool {
		if parentID == nil {
			return x.ParentID == nil
		}
		return x.ParentID != nil && *x.ParentID == *parentID
	}), nil
}

type fakePermissions struct{ *memRepo[*model.DocumentPermission] }

func (f fakePermissions) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*model.DocumentPermission, error) {
	return f.filter(func(p *model.DocumentPermission) bool { return p.DocumentID == documentID }), nil
}

func repositoryPage() repository.Page { return repository.Page{Limit: 50} }
