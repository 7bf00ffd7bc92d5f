package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/ecm-core/internal/audit"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
)

func TestDocumentVersionService_Numbering(t *testing.T) {
	t.Parallel()
	repo := &fakeVersions{}
	clk := &clock{t: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	s := NewDocumentVersionService(repo, clk.now)
	ctx := audit.WithUser(context.Background(), "carol")
	doc := uuid.Must(uuid.NewV4())

	v1, err := s.AddVersion(ctx, &model.DocumentVersion{DocumentID: doc, FileName: "contract.pdf",
		StorageType: "LOCAL", StoragePath: "a/contract.pdf", VersionNumber: 99})
	require.NoError(t, err)
	require.Equal(t, 1, v1.VersionNumber)
	require.Equal(t, "pdf", v1.FileExtension)
	require.Equal(t, "carol", v1.CreatedBy)
	require.Equal(t, clk.t, v1.CreatedAt)

	v2, err := s.AddVersion(ctx, &model.DocumentVersion{DocumentID: doc, FileName: "contract.pdf",
		StorageType: "LOCAL", StoragePath: "b/contract.pdf"})
	require.NoError(t, err)
	require.Equal(t, 2, v2.VersionNumber)
	require.NotEqual(t, v1.ID, v2.ID)

	all, err := s.ListByDocument(ctx, doc)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDocumentVersionService_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("db gone")
	repo := &fakeVersions{latestErr: boom}
	s := NewDocumentVersionService(repo, nil)
	ctx := context.Background()

	_, err := s.AddVersion(ctx, &model.DocumentVersion{FileName: "x"})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.AddVersion(ctx, &model.DocumentVersion{DocumentID: uuid.Must(uuid.NewV4()), FileName: "x",
		StorageType: "S3", StoragePath: "p"})
	require.ErrorIs(t, err, boom)
	require.Empty(t, repo.rows)
}

func newContentFixture(t *testing.T) (*ContentServiceImpl, fakeDocs, *fakeStorageExec, *model.Document) {
	t.Helper()
	docs := newFakeDocs()
	doc, err := NewDocumentService(docs, nil).Create(context.Background(), &model.Document{Title: "Deed"})
	require.NoError(t, err)
	storage := &fakeStorageExec{}
	versions := NewDocumentVersionService(&fakeVersions{}, nil)
	return NewContentService(docs, versions, storage, "LOCAL"), docs, storage, doc
}

func TestContentService_RequestUpload(t *testing.T) {
	t.Parallel()
	s, _, storage, doc := newContentFixture(t)
	ctx := context.Background()

	ticket, err := s.RequestUpload(ctx, Upload{DocumentID: doc.ID, FileName: "../../etc/deed.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	require.Len(t, storage.uploads, 1)

	req := storage.uploads[0]
	require.Equal(t, "LOCAL", req.StorageType)
	require.Equal(t, "deed.pdf", req.FileName)
	require.True(t, strings.HasPrefix(req.Path, doc.ID.String()+"/"), req.Path)
	require.True(t, strings.HasSuffix(req.Path, "/deed.pdf"), req.Path)
	require.Equal(t, req.Path, ticket.Location.Path)

	_, err = s.RequestUpload(ctx, Upload{DocumentID: doc.ID, FileName: "a.txt", StorageType: "S3"})
	require.NoError(t, err)
	require.Equal(t, "S3", storage.uploads[1].StorageType)

	_, err = s.RequestUpload(ctx, Upload{DocumentID: uuid.Must(uuid.NewV4()), FileName: "a.txt"})
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = s.RequestUpload(ctx, Upload{DocumentID: doc.ID, FileName: " "})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Len(t, storage.uploads, 2)
}

func TestContentService_ConfirmDownloadDelete(t *testing.T) {
	t.Parallel()
	s, _, storage, doc := newContentFixture(t)
	ctx := context.Background()
	loc := ecm.Location{StorageType: "LOCAL", Path: doc.ID.String() + "/u1/deed.pdf"}
	storage.confirmRes = ecm.UploadConfirmation{Size: 2048, ContentType: "application/pdf", ETag: "abc"}

	v, err := s.ConfirmUpload(ctx, Confirmation{DocumentID: doc.ID, Location: loc, ChangeSummary: "first", Major: true})
	require.NoError(t, err)
	require.Equal(t, 1, v.VersionNumber)
	require.Equal(t, "deed.pdf", v.FileName)
	require.Equal(t, int64(2048), v.FileSize)
	require.Equal(t, "application/pdf", v.MimeType)
	require.Equal(t, "LOCAL", v.StorageType)
	require.Equal(t, loc.Path, v.StoragePath)
	require.True(t, v.Major)

	link, err := s.DownloadURL(ctx, v.ID)
	require.NoError(t, err)
	require.Contains(t, link.URL, "name=deed.pdf")
	require.Equal(t, []ecm.Location{loc}, storage.downloads)

	require.NoError(t, s.DeleteContent(ctx, v.ID))
	require.Equal(t, []ecm.Location{loc}, storage.deleted)

	_, err = s.DownloadURL(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestContentService_ConfirmRejectsForeignLocation(t *testing.T) {
	t.Parallel()
	s, docs, storage, docA := newContentFixture(t)
	ctx := context.Background()
	docB, err := NewDocumentService(docs, nil).Create(ctx, &model.Document{Title: "Lease"})
	require.NoError(t, err)

	ticket, err := s.RequestUpload(ctx, Upload{DocumentID: docA.ID, FileName: "secret.pdf"})
	require.NoError(t, err)

	for _, p := range []string{
		ticket.Location.Path,
		"secret.pdf",
		docB.ID.String(),
		docB.ID.String() + "/../" + ticket.Location.Path,
		"/" + docB.ID.String() + "/u/x.pdf",
	} {
		_, err := s.ConfirmUpload(ctx, Confirmation{DocumentID: docB.ID,
			Location: ecm.Location{StorageType: "LOCAL", Path: p}})
		require.ErrorIs(t, err, errs.ErrValidation, p)
	}
	require.Empty(t, storage.confirmed)

	storage.confirmRes = ecm.UploadConfirmation{Location: ecm.Location{StorageType: "LOCAL", Path: ticket.Location.Path}}
	_, err = s.ConfirmUpload(ctx, Confirmation{DocumentID: docB.ID,
		Location: ecm.Location{StorageType: "LOCAL", Path: docB.ID.String() + "/u/x.pdf"}})
	require.ErrorIs(t, err, errs.ErrValidation)

	v, err := s.ConfirmUpload(ctx, Confirmation{DocumentID: docA.ID, Location: ticket.Location})
	require.NoError(t, err)
	require.Equal(t, ticket.Location.Path, v.StoragePath)
}
