package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/extension"
	"github.com/and161185/ecm-core/internal/model"
)

/************ fake storage ************/
type fakeStorage struct {
	name    string
	types   []string
	calls   []string
	failErr error
}

func (f *fakeStorage) Name() string { return f.name }
func (f *fakeStorage) SupportsStorageType(t string) bool {
	for _, s := range f.types {
		if strings.EqualFold(s, t) {
			return true
		}
	}
	return false
}
func (f *fakeStorage) GenerateUploadURL(_ context.Context, req ecm.UploadRequest) (ecm.UploadTicket, error) {
	f.calls = append(f.calls, "upload")
	return ecm.UploadTicket{URL: f.name + "://" + req.Path, Method: "PUT"}, f.failErr
}
func (f *fakeStorage) ConfirmUpload(_ context.Context, loc ecm.Location) (ecm.UploadConfirmation, error) {
	f.calls = append(f.calls, "confirm")
	return ecm.UploadConfirmation{Location: loc, Size: 42}, f.failErr
}
func (f *fakeStorage) GenerateDownloadURL(_ context.Context, loc ecm.Location, _ string) (ecm.DownloadLink, error) {
	f.calls = append(f.calls, "download")
	return ecm.DownloadLink{URL: f.name + "://" + loc.Path}, f.failErr
}
func (f *fakeStorage) DeleteDocument(context.Context, ecm.Location) error {
	f.calls = append(f.calls, "delete")
	return f.failErr
}

func storageRegistry(t *testing.T, exts map[*fakeStorage]int) *extension.Registry {
	t.Helper()
	r := extension.NewRegistry()
	require.NoError(t, r.RegisterPoint(ecm.StoragePoint, extension.Contract[ecm.DocumentStorageExtension]()))
	for e, prio := range exts {
		require.NoError(t, r.Register(ecm.StoragePoint, e, prio))
	}
	return r
}

func TestStorageExecutor_ResolvesSupportingProvider(t *testing.T) {
	t.Parallel()
	s3 := &fakeStorage{name: "s3", types: []string{"S3"}}
	ex := NewStorageExecutor(storageRegistry(t, map[*fakeStorage]int{s3: 10}))

	p, err := ex.ResolveProvider("s3")
	require.NoError(t, err)
	require.Same(t, s3, p)
}

func TestStorageExecutor_NoFallbackToLowerPriority(t *testing.T) {
	t.Parallel()
	s3 := &fakeStorage{name: "s3", types: []string{"S3"}}
	local := &fakeStorage{name: "local", types: []string{"LOCAL"}}
	ex := NewStorageExecutor(storageRegistry(t, map[*fakeStorage]int{s3: 10, local: 1}))

	_, err := ex.ResolveProvider("LOCAL")
	require.ErrorIs(t, err, errs.ErrNoCompatibleProvider)

	_, err = ex.GenerateUploadURL(context.Background(), ecm.UploadRequest{StorageType: "LOCAL"})
	require.ErrorIs(t, err, errs.ErrNoCompatibleProvider)
	require.Empty(t, local.calls)
}

func TestStorageExecutor_EmptyRegistry(t *testing.T) {
	t.Parallel()
	ex := NewStorageExecutor(storageRegistry(t, nil))
	err := ex.DeleteDocument(context.Background(), ecm.Location{StorageType: "S3", Path: "a"})
	require.ErrorIs(t, err, errs.ErrNoCompatibleProvider)
}

func TestStorageExecutor_Delegates(t *testing.T) {
	t.Parallel()
	s3 := &fakeStorage{name: "s3", types: []string{"S3"}}
	ex := NewStorageExecutor(storageRegistry(t, map[*fakeStorage]int{s3: 0}))
	ctx := context.Background()
	loc := ecm.Location{StorageType: "S3", Path: "docs/a.pdf"}

	tk, err := ex.GenerateUploadURL(ctx, ecm.UploadRequest{StorageType: "S3", Path: loc.Path})
	require.NoError(t, err)
	require.Equal(t, "s3://docs/a.pdf", tk.URL)

	conf, err := ex.ConfirmUpload(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, int64(42), conf.Size)

	dl, err := ex.GenerateDownloadURL(ctx, loc, "a.pdf")
	require.NoError(t, err)
	require.Equal(t, "s3://docs/a.pdf", dl.URL)

	require.NoError(t, ex.DeleteDocument(ctx, loc))
	require.Equal(t, []string{"upload", "confirm", "download", "delete"}, s3.calls)
}

func TestStorageExecutor_PropagatesProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("bucket on fire")
	s3 := &fakeStorage{name: "s3", types: []string{"S3"}, failErr: boom}
	ex := NewStorageExecutor(storageRegistry(t, map[*fakeStorage]int{s3: 0}))

	err := ex.DeleteDocument(context.Background(), ecm.Location{StorageType: "S3"})
	require.Same(t, boom, err)
}

/************ fake signature provider ************/
type fakeSigner struct {
	name  string
	calls []string
}

func (f *fakeSigner) Name() string { return f.name }
func (f *fakeSigner) SupportsRequest(req ecm.SignatureRequest) bool {
	return req.Provider == "" || strings.EqualFold(req.Provider, f.name)
}
func (f *fakeSigner) Send(context.Context, ecm.SignatureRequest) (ecm.SendResult, error) {
	f.calls = append(f.calls, "send")
	return ecm.SendResult{ProviderRequestID: "env-1", Status: model.SignatureInProgress, SentAt: time.Now()}, nil
}
func (f *fakeSigner) CheckStatus(_ context.Context, req ecm.SignatureRequest) (ecm.StatusResult, error) {
	f.calls = append(f.calls, "status")
	return ecm.StatusResult{ProviderRequestID: req.ProviderRequestID, Status: model.SignatureSigned}, nil
}
func (f *fakeSigner) Verify(context.Context, ecm.SignatureRequest) (ecm.VerificationResult, error) {
	f.calls = append(f.calls, "verify")
	return ecm.VerificationResult{Valid: true}, nil
}
func (f *fakeSigner) Cancel(context.Context, ecm.SignatureRequest) error {
	f.calls = append(f.calls, "cancel")
	return nil
}
func (f *fakeSigner) FetchSigners(context.Context, ecm.SignatureRequest) ([]ecm.SignerStatus, error) {
	f.calls = append(f.calls, "signers")
	return []ecm.SignerStatus{{Email: "a@example.com", Status: model.SignaturePending}}, nil
}

func signatureExecutor(t *testing.T, p *fakeSigner) *SignatureExecutor {
	t.Helper()
	r := extension.NewRegistry()
	require.NoError(t, r.RegisterPoint(ecm.SignaturePoint, extension.Contract[ecm.SignatureProviderExtension]()))
	if p != nil {
		require.NoError(t, r.Register(ecm.SignaturePoint, p, 0))
	}
	return NewSignatureExecutor(r)
}

func TestSignatureExecutor_Delegates(t *testing.T) {
	t.Parallel()
	p := &fakeSigner{name: "logalty"}
	ex := signatureExecutor(t, p)
	ctx := context.Background()
	req := ecm.SignatureRequest{RequestID: uuid.Must(uuid.NewV4()), Provider: "Logalty", ProviderRequestID: "env-1"}

	sent, err := ex.Send(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "env-1", sent.ProviderRequestID)

	st, err := ex.CheckStatus(ctx, req)
	require.NoError(t, err)
	require.Equal(t, model.SignatureSigned, st.Status)

	v, err := ex.Verify(ctx, req)
	require.NoError(t, err)
	require.True(t, v.Valid)

	require.NoError(t, ex.Cancel(ctx, req))

	ss, err := ex.FetchSigners(ctx, req)
	require.NoError(t, err)
	require.Len(t, ss, 1)

	require.Equal(t, []string{"send", "status", "verify", "cancel", "signers"}, p.calls)
}

func TestSignatureExecutor_Unsupported(t *testing.T) {
	t.Parallel()
	p := &fakeSigner{name: "logalty"}
	ex := signatureExecutor(t, p)

	_, err := ex.Send(context.Background(), ecm.SignatureRequest{Provider: "docusign"})
	require.ErrorIs(t, err, errs.ErrNoCompatibleProvider)
	require.Empty(t, p.calls)

	ex = signatureExecutor(t, nil)
	_, err = ex.FetchSigners(context.Background(), ecm.SignatureRequest{})
	require.ErrorIs(t, err, errs.ErrNoCompatibleProvider)
}
