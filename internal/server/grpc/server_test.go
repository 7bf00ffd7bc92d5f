package grpcserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/ecm-core/internal/audit"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
	"github.com/and161185/ecm-core/internal/service"
)

type fakeDocs struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*model.Document
	lastPage repository.Page
}

func (f *fakeDocs) Create(ctx context.Context, d *model.Document) (*model.Document, error) {
	if d.Title == "" {
		return nil, errs.Validation("title required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	cp.ID = uuid.Must(uuid.NewV4())
	cp.Status = model.DocumentDraft
	cp.CreatedBy = audit.User(ctx)
	cp.Version = 1
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeDocs) Get(_ context.Context, id uuid.UUID) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (f *fakeDocs) Update(ctx context.Context, d *model.Document) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[d.ID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if d.Version != 0 && d.Version != cur.Version {
		return nil, errs.ErrVersionConflict
	}
	cp := *d
	cp.Audit = cur.Audit
	cp.Version = cur.Version + 1
	cp.UpdatedBy = audit.User(ctx)
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeDocs) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeDocs) List(_ context.Context, page repository.Page) ([]*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPage = page
	out := make([]*model.Document, 0, len(f.rows))
	for _, d := range f.rows {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDocs) ListByFolder(_ context.Context, folderID *uuid.UUID, page repository.Page) ([]*model.Document, error) {
	all, _ := f.List(context.Background(), page)
	out := all[:0]
	for _, d := range all {
		if d.FolderID != nil && *d.FolderID == *folderID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeContent struct {
	lastUpload service.Upload
}

func (f *fakeContent) RequestUpload(_ context.Context, up service.Upload) (ecm.UploadTicket, error) {
	f.lastUpload = up
	return ecm.UploadTicket{
		URL:       "https://store.example/put",
		Method:    "PUT",
		Location:  ecm.Location{StorageType: "LOCAL", Path: up.DocumentID.String() + "/" + up.FileName},
		Headers:   map[string]string{"Content-Type": up.MimeType},
		ExpiresAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeContent) ConfirmUpload(_ context.Context, c service.Confirmation) (*model.DocumentVersion, error) {
	return &model.DocumentVersion{
		ID:            uuid.Must(uuid.NewV4()),
		DocumentID:    c.DocumentID,
		VersionNumber: 1,
		FileName:      c.FileName,
		StorageType:   c.Location.StorageType,
		StoragePath:   c.Location.Path,
		Major:         c.Major,
	}, nil
}

func (f *fakeContent) DownloadURL(_ context.Context, id uuid.UUID) (ecm.DownloadLink, error) {
	return ecm.DownloadLink{URL: "https://store.example/get/" + id.String()}, nil
}

func (f *fakeContent) DeleteContent(context.Context, uuid.UUID) error { return errs.ErrNoCompatibleProvider }

type fakeSigs struct {
	service.SignatureRequestService
	expired []*model.SignatureRequest
}

func (f *fakeSigs) ProcessExpiredRequests(context.Context) ([]*model.SignatureRequest, error) {
	return f.expired, nil
}

func (f *fakeSigs) SendNotification(_ context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	now := time.Now()
	return &model.SignatureRequest{
		ID: id, Status: model.SignatureInProgress,
		NotificationSent: true, NotificationSentAt: &now,
	}, nil
}

func (f *fakeSigs) UpdateStatus(_ context.Context, id uuid.UUID, st model.SignatureStatus) (*model.SignatureRequest, error) {
	if !st.Valid() {
		return nil, errs.Validation("unknown signature status %q", st)
	}
	return &model.SignatureRequest{ID: id, Status: st}, nil
}

func (f *fakeSigs) Verify(_ context.Context, id uuid.UUID) (*model.SignatureVerification, error) {
	sig := uuid.Must(uuid.NewV4())
	return &model.SignatureVerification{
		ID: uuid.Must(uuid.NewV4()), SignatureRequestID: id, SignatureID: sig,
		Valid: true, VerifiedAt: time.Now(), Details: "chain ok",
		Proof: &model.SignatureProof{SignatureID: sig, ProofURL: "https://vendor.example/p.pdf", Hash: "sha256:ff"},
	}, nil
}

func (f *fakeSigs) ListVerifications(_ context.Context, id uuid.UUID) ([]*model.SignatureVerification, error) {
	return []*model.SignatureVerification{{ID: uuid.Must(uuid.NewV4()), SignatureRequestID: id, VerifiedAt: time.Now()}}, nil
}

func (f *fakeSigs) SyncSigner(_ context.Context, id uuid.UUID) (*model.DocumentSignature, error) {
	if id == uuid.Nil {
		return nil, errs.Validation("empty id")
	}
	return nil, errs.ErrNotFound
}

const bufSize = 1 << 20

type harness struct {
	cc     *grpc.ClientConn
	tokens *service.TokenServiceImpl
	docs   *fakeDocs
	cont   *fakeContent
	sigs   *fakeSigs
}

func startBufGRPC(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tokens: service.NewTokenService([]byte("test-secret"), time.Hour, nil),
		docs:   &fakeDocs{rows: map[uuid.UUID]*model.Document{}},
		cont:   &fakeContent{},
		sigs:   &fakeSigs{},
	}
	log := zaptest.NewLogger(t)

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log), LoggingUnary(log), AuthUnary(h.tokens, nil, log),
	))
	New(Deps{Documents: h.docs, Content: h.cont, Signatures: h.sigs}).Register(gs)
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	h.cc = cc
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return h
}

func (h *harness) ctxAs(t *testing.T, user string) context.Context {
	t.Helper()
	tok, _, err := h.tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func call(ctx context.Context, h *harness, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := h.cc.Invoke(ctx, MethodName(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func field(s *structpb.Struct, k string) *structpb.Value { return s.GetFields()[k] }

func TestServer_DocumentLifecycle(t *testing.T) {
	t.Parallel()
	h := startBufGRPC(t)
	ctx := h.ctxAs(t, "alice")

	created, err := call(ctx, h, "CreateDocument", map[string]any{"title": "Contract", "tenantId": "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := field(created, "id").GetStringValue()
	if field(created, "createdBy").GetStringValue() != "alice" {
		t.Fatalf("createdBy = %v", field(created, "createdBy"))
	}
	if field(created, "status").GetStringValue() != "DRAFT" {
		t.Fatalf("status = %v", field(created, "status"))
	}
	if field(created, "folderId").GetKind() == nil {
		t.Fatalf("folderId must be present as null")
	}

	got, err := call(ctx, h, "GetDocument", map[string]any{"id": id})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if field(got, "title").GetStringValue() != "Contract" {
		t.Fatalf("title = %v", field(got, "title"))
	}

	upd, err := call(h.ctxAs(t, "bob"), h, "UpdateDocument",
		map[string]any{"id": id, "title": "Contract v2", "version": 1})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if field(upd, "version").GetNumberValue() != 2 || field(upd, "updatedBy").GetStringValue() != "bob" {
		t.Fatalf("update result: %v", upd)
	}

	_, err = call(ctx, h, "UpdateDocument", map[string]any{"id": id, "title": "stale", "version": 1})
	if status.Code(err) != codes.FailedPrecondition || Reason(err) != "VERSION_CONFLICT" {
		t.Fatalf("stale update: %v", err)
	}

	if _, err := call(ctx, h, "DeleteDocument", map[string]any{"id": id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = call(ctx, h, "GetDocument", map[string]any{"id": id})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestServer_RequestErrors(t *testing.T) {
	t.Parallel()
	h := startBufGRPC(t)

	_, err := call(context.Background(), h, "GetDocument", map[string]any{"id": uuid.Must(uuid.NewV4()).String()})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no token: %v", err)
	}

	ctx := h.ctxAs(t, "alice")
	cases := map[string]map[string]any{
		"bad uuid":      {"id": "xyz"},
		"missing id":    {},
		"id wrong kind": {"id": 42},
	}
	for name, in := range cases {
		_, err := call(ctx, h, "GetDocument", in)
		if status.Code(err) != codes.InvalidArgument || Reason(err) != "VALIDATION" {
			t.Fatalf("%s: %v", name, err)
		}
	}

	_, err = call(ctx, h, "CreateDocument", map[string]any{"title": "x", "version": 1.5})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("fractional version: %v", err)
	}

	_, err = call(ctx, h, "UpdateSignatureRequestStatus",
		map[string]any{"id": uuid.Must(uuid.NewV4()).String(), "status": "LOST"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("unknown status: %v", err)
	}
}

func TestServer_ContentFlow(t *testing.T) {
	t.Parallel()
	h := startBufGRPC(t)
	ctx := h.ctxAs(t, "alice")
	docID := uuid.Must(uuid.NewV4()).String()

	ticket, err := call(ctx, h, "GenerateUploadURL", map[string]any{
		"documentId": docID, "fileName": "a.pdf", "mimeType": "application/pdf", "size": 1024,
	})
	if err != nil {
		t.Fatalf("upload url: %v", err)
	}
	if field(ticket, "method").GetStringValue() != "PUT" || field(ticket, "path").GetStringValue() != docID+"/a.pdf" {
		t.Fatalf("ticket: %v", ticket)
	}
	headers := field(ticket, "headers").GetStructValue()
	if headers.GetFields()["Content-Type"].GetStringValue() != "application/pdf" {
		t.Fatalf("headers: %v", headers)
	}
	if h.cont.lastUpload.Size != 1024 {
		t.Fatalf("size not forwarded: %+v", h.cont.lastUpload)
	}

	ver, err := call(ctx, h, "ConfirmUpload", map[string]any{
		"documentId": docID, "storageType": "LOCAL", "path": docID + "/a.pdf", "fileName": "a.pdf", "major": true,
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !field(ver, "major").GetBoolValue() || field(ver, "versionNumber").GetNumberValue() != 1 {
		t.Fatalf("version: %v", ver)
	}

	link, err := call(ctx, h, "GenerateDownloadURL", map[string]any{"versionId": field(ver, "id").GetStringValue()})
	if err != nil || field(link, "url").GetStringValue() == "" {
		t.Fatalf("download: %v %v", link, err)
	}

	_, err = call(ctx, h, "DeleteContent", map[string]any{"versionId": field(ver, "id").GetStringValue()})
	if status.Code(err) != codes.FailedPrecondition || Reason(err) != "NO_COMPATIBLE_PROVIDER" {
		t.Fatalf("delete content: %v", err)
	}
}

func TestServer_SignatureRequests(t *testing.T) {
	t.Parallel()
	h := startBufGRPC(t)
	ctx := h.ctxAs(t, "alice")

	past := time.Now().Add(-time.Hour)
	h.sigs.expired = []*model.SignatureRequest{
		{ID: uuid.Must(uuid.NewV4()), Status: model.SignatureExpired, ExpirationDate: &past},
		{ID: uuid.Must(uuid.NewV4()), Status: model.SignatureExpired, ExpirationDate: &past},
	}
	out, err := call(ctx, h, "ProcessExpiredSignatureRequests", map[string]any{})
	if err != nil {
		t.Fatalf("process expired: %v", err)
	}
	if field(out, "count").GetNumberValue() != 2 || len(field(out, "requests").GetListValue().GetValues()) != 2 {
		t.Fatalf("expired: %v", out)
	}

	id := uuid.Must(uuid.NewV4()).String()
	sent, err := call(ctx, h, "SendSignatureNotification", map[string]any{"id": id})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !field(sent, "notificationSent").GetBoolValue() || field(sent, "status").GetStringValue() != "IN_PROGRESS" {
		t.Fatalf("sent: %v", sent)
	}
	if field(sent, "notificationSentAt").GetStringValue() == "" {
		t.Fatalf("notificationSentAt missing: %v", sent)
	}
}

func TestServer_SignatureVerification(t *testing.T) {
	t.Parallel()
	h := startBufGRPC(t)
	ctx := h.ctxAs(t, "alice")
	id := uuid.Must(uuid.NewV4()).String()

	v, err := call(ctx, h, "VerifySignatureRequest", map[string]any{"id": id})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !field(v, "valid").GetBoolValue() || field(v, "signatureRequestId").GetStringValue() != id {
		t.Fatalf("verify: %v", v)
	}
	if field(v, "proof").GetStructValue().GetFields()["url"].GetStringValue() != "https://vendor.example/p.pdf" {
		t.Fatalf("proof: %v", field(v, "proof"))
	}

	list, err := call(ctx, h, "ListSignatureVerifications", map[string]any{"id": id})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	items := field(list, "verifications").GetListValue().GetValues()
	if field(list, "count").GetNumberValue() != 1 || len(items) != 1 {
		t.Fatalf("list: %v", list)
	}
	if _, ok := items[0].GetStructValue().GetFields()["proof"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Fatalf("proof must be null: %v", items[0])
	}

	_, err = call(ctx, h, "SyncSignatureSigner", map[string]any{"id": id})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("sync unknown signer: %v", err)
	}
	_, err = call(ctx, h, "VerifySignatureRequest", map[string]any{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("verify without id: %v", err)
	}
}

func TestServer_ListDocumentsAndUnconfigured(t *testing.T) {
	t.Parallel()
	h := startBufGRPC(t)
	ctx := h.ctxAs(t, "alice")

	folder := uuid.Must(uuid.NewV4()).String()
	for _, in := range []map[string]any{
		{"title": "a", "folderId": folder},
		{"title": "b", "folderId": folder},
		{"title": "c"},
	} {
		if _, err := call(ctx, h, "CreateDocument", in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := call(ctx, h, "ListDocuments", map[string]any{"limit": 10, "offset": -5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if field(all, "count").GetNumberValue() != 3 {
		t.Fatalf("all: %v", all)
	}
	h.docs.mu.Lock()
	page := h.docs.lastPage
	h.docs.mu.Unlock()
	if page.Limit != 10 || page.Offset != 0 {
		t.Fatalf("page: %+v", page)
	}

	inFolder, err := call(ctx, h, "ListDocuments", map[string]any{"folderId": folder})
	if err != nil || field(inFolder, "count").GetNumberValue() != 2 {
		t.Fatalf("by folder: %v %v", inFolder, err)
	}

	_, err = call(ctx, h, "CreateFolder", map[string]any{"name": "Legal"})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("unconfigured folders: %v", err)
	}
}
