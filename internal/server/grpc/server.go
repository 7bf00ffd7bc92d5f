// Package grpcserver exposes the ECM core services over gRPC.
//
// Messages are google.protobuf.Struct values so clients need no generated
// stubs; the field names are documented on each method of ContentServer.
package grpcserver

import (
	"context"
	"path"
	"strings"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/ecm-core/internal/convert"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ecm.v1.ContentService"

// ContentServer is the handler set behind ServiceName.
type ContentServer interface {
	// CreateDocument: title, description, type, status, folderId, tenantId, department.
	CreateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetDocument: id.
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// UpdateDocument: id, version and the CreateDocument fields.
	UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// DeleteDocument: id.
	DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GenerateUploadURL: documentId, fileName, mimeType, size, storageType.
	GenerateUploadURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ConfirmUpload: documentId, storageType, path, fileName, changeSummary, major.
	ConfirmUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GenerateDownloadURL: versionId.
	GenerateDownloadURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// DeleteContent: versionId.
	DeleteContent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CreateSignatureRequest: documentId, documentSignatureId, referenceCode, provider, expirationDate.
	CreateSignatureRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetSignatureRequest: id.
	GetSignatureRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SendSignatureNotification: id.
	SendSignatureNotification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SendSignatureReminder: id.
	SendSignatureReminder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// UpdateSignatureRequestStatus: id, status.
	UpdateSignatureRequestStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CheckSignatureStatus: id.
	CheckSignatureStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CancelSignatureRequest: id.
	CancelSignatureRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ProcessExpiredSignatureRequests takes no fields.
	ProcessExpiredSignatureRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListSignatureRequestsByStatus: status.
	ListSignatureRequestsByStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListSignatureRequestsBySignature: documentSignatureId.
	ListSignatureRequestsBySignature(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// VerifySignatureRequest: id.
	VerifySignatureRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListSignatureVerifications: id.
	ListSignatureVerifications(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SyncSignatureSigner: id.
	SyncSignatureSigner(context.Context, *structpb.Struct) (*structpb.Struct, error)

	// ListDocuments: folderId (optional; absent lists all), limit, offset.
	ListDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListDocumentVersions: documentId.
	ListDocumentVersions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CreateFolder: name, parentId, tenantId, securityLevel, systemFolder.
	CreateFolder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListFolderChildren: parentId (absent lists roots).
	ListFolderChildren(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CreateTag: name, color, tenantId.
	CreateTag(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// AssignTag: documentId, tagId.
	AssignTag(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// UnassignTag: documentId, tagId.
	UnassignTag(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListDocumentTags: documentId.
	ListDocumentTags(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GrantPermission: documentId, principal, principalType, permission, granted, expiresAt.
	GrantPermission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// RevokePermission: id.
	RevokePermission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListDocumentPermissions: documentId.
	ListDocumentPermissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CreateDocumentSignature: documentId, signerName, signerEmail, signerRole,
	// signingOrder, required, customSignatureMessage, language, expiresAt, provider.
	CreateDocumentSignature(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListDocumentSignatures: documentId.
	ListDocumentSignatures(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Deps are the services behind the handlers.
type Deps struct {
	Documents   service.DocumentService
	Versions    service.DocumentVersionService
	Content     service.ContentService
	Signatures  service.SignatureRequestService
	Folders     service.FolderService
	Tags        service.TagService
	Permissions service.PermissionService
	Signers     service.DocumentSignatureService
}

// Server wires services into gRPC handlers.
type Server struct {
	docs     service.DocumentService
	versions service.DocumentVersionService
	content  service.ContentService
	sigs     service.SignatureRequestService
	folders  service.FolderService
	tags     service.TagService
	perms    service.PermissionService
	signers  service.DocumentSignatureService
}

var _ ContentServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(d Deps) *Server {
	return &Server{
		docs:     d.Documents,
		versions: d.Versions,
		content:  d.Content,
		sigs:     d.Signatures,
		folders:  d.Folders,
		tags:     d.Tags,
		perms:    d.Permissions,
		signers:  d.Signers,
	}
}

// Register attaches s to r under ServiceName.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&ServiceDesc, s)
}

type handlerFunc func(ContentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call handlerFunc) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(ContentServer), ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if ic == nil {
				return h(ctx, in)
			}
			return ic(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, h)
		},
	}
}

// ServiceDesc describes ContentServer for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateDocument", ContentServer.CreateDocument),
		unary("GetDocument", ContentServer.GetDocument),
		unary("UpdateDocument", ContentServer.UpdateDocument),
		unary("DeleteDocument", ContentServer.DeleteDocument),
		unary("GenerateUploadURL", ContentServer.GenerateUploadURL),
		unary("ConfirmUpload", ContentServer.ConfirmUpload),
		unary("GenerateDownloadURL", ContentServer.GenerateDownloadURL),
		unary("DeleteContent", ContentServer.DeleteContent),
		unary("CreateSignatureRequest", ContentServer.CreateSignatureRequest),
		unary("GetSignatureRequest", ContentServer.GetSignatureRequest),
		unary("SendSignatureNotification", ContentServer.SendSignatureNotification),
		unary("SendSignatureReminder", ContentServer.SendSignatureReminder),
		unary("UpdateSignatureRequestStatus", ContentServer.UpdateSignatureRequestStatus),
		unary("CheckSignatureStatus", ContentServer.CheckSignatureStatus),
		unary("CancelSignatureRequest", ContentServer.CancelSignatureRequest),
		unary("ProcessExpiredSignatureRequests", ContentServer.ProcessExpiredSignatureRequests),
		unary("ListSignatureRequestsByStatus", ContentServer.ListSignatureRequestsByStatus),
		unary("ListSignatureRequestsBySignature", ContentServer.ListSignatureRequestsBySignature),
		unary("VerifySignatureRequest", ContentServer.VerifySignatureRequest),
		unary("ListSignatureVerifications", ContentServer.ListSignatureVerifications),
		unary("SyncSignatureSigner", ContentServer.SyncSignatureSigner),
		unary("ListDocuments", ContentServer.ListDocuments),
		unary("ListDocumentVersions", ContentServer.ListDocumentVersions),
		unary("CreateFolder", ContentServer.CreateFolder),
		unary("ListFolderChildren", ContentServer.ListFolderChildren),
		unary("CreateTag", ContentServer.CreateTag),
		unary("AssignTag", ContentServer.AssignTag),
		unary("UnassignTag", ContentServer.UnassignTag),
		unary("ListDocumentTags", ContentServer.ListDocumentTags),
		unary("GrantPermission", ContentServer.GrantPermission),
		unary("RevokePermission", ContentServer.RevokePermission),
		unary("ListDocumentPermissions", ContentServer.ListDocumentPermissions),
		unary("CreateDocumentSignature", ContentServer.CreateDocumentSignature),
		unary("ListDocumentSignatures", ContentServer.ListDocumentSignatures),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ecm/v1/content.proto",
}

// MethodName returns the full method path of a ContentServer method.
func MethodName(name string) string { return path.Join("/", ServiceName, name) }

// --- Documents ---

func (s *Server) CreateDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	d, err := convert.FromStructDocument(in)
	if err != nil {
		return nil, err
	}
	d.ID = uuid.Nil
	out, err := s.docs.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	return convert.ToStructDocument(out), nil
}

func (s *Server) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "id")
	if err != nil {
		return nil, err
	}
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructDocument(d), nil
}

func (s *Server) UpdateDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := convert.RequireID(in, "id"); err != nil {
		return nil, err
	}
	d, err := convert.FromStructDocument(in)
	if err != nil {
		return nil, err
	}
	out, err := s.docs.Update(ctx, d)
	if err != nil {
		return nil, err
	}
	return convert.ToStructDocument(out), nil
}

func (s *Server) DeleteDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "id")
	if err != nil {
		return nil, err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return nil, err
	}
	return convert.Empty(), nil
}

// --- Content ---

func (s *Server) GenerateUploadURL(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(in)
	up := service.Upload{
		DocumentID:  r.UUID("documentId"),
		StorageType: r.String("storageType"),
		FileName:    r.String("fileName"),
		MimeType:    r.String("mimeType"),
		Size:        r.Int64("size"),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	t, err := s.content.RequestUpload(ctx, up)
	if err != nil {
		return nil, err
	}
	return convert.ToStructUploadTicket(t), nil
}

func (s *Server) ConfirmUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(in)
	c := service.Confirmation{
		DocumentID:    r.UUID("documentId"),
		Location:      ecm.Location{StorageType: r.String("storageType"), Path: r.String("path")},
		FileName:      r.String("fileName"),
		ChangeSummary: r.String("changeSummary"),
		Major:         r.Bool("major"),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	v, err := s.content.ConfirmUpload(ctx, c)
	if err != nil {
		return nil, err
	}
	return convert.ToStructVersion(v), nil
}

func (s *Server) GenerateDownloadURL(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "versionId")
	if err != nil {
		return nil, err
	}
	l, err := s.content.DownloadURL(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructDownloadLink(l), nil
}

func (s *Server) DeleteContent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "versionId")
	if err != nil {
		return nil, err
	}
	if err := s.content.DeleteContent(ctx, id); err != nil {
		return nil, err
	}
	return convert.Empty(), nil
}

// --- Signature requests ---

func (s *Server) CreateSignatureRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sr, err := convert.FromStructSignatureRequest(in)
	if err != nil {
		return nil, err
	}
	out, err := s.sigs.Create(ctx, sr)
	if err != nil {
		return nil, err
	}
	return convert.ToStructSignatureRequest(out), nil
}

// byID adapts a service call keyed by the "id" field.
func (s *Server) byID(ctx context.Context, in *structpb.Struct, call func(context.Context, uuid.UUID) (*model.SignatureRequest, error)) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "id")
	if err != nil {
		return nil, err
	}
	out, err := call(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructSignatureRequest(out), nil
}

func (s *Server) GetSignatureRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, in, s.sigs.Get)
}

func (s *Server) SendSignatureNotification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, in, s.sigs.SendNotification)
}

func (s *Server) SendSignatureReminder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, in, s.sigs.SendReminder)
}

func (s *Server) CheckSignatureStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, in, s.sigs.CheckProviderStatus)
}

func (s *Server) CancelSignatureRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, in, s.sigs.Cancel)
}

func (s *Server) UpdateSignatureRequestStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	st := model.SignatureStatus(convert.Read(in).String("status"))
	return s.byID(ctx, in, func(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
		return s.sigs.UpdateStatus(ctx, id, st)
	})
}

func (s *Server) ProcessExpiredSignatureRequests(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.sigs.ProcessExpiredRequests(ctx)
	if err != nil {
		return nil, err
	}
	return convert.ToStructSignatureRequests(list), nil
}

func (s *Server) ListSignatureRequestsByStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(in)
	st := model.SignatureStatus(r.String("status"))
	if r.Err != nil {
		return nil, r.Err
	}
	list, err := s.sigs.GetByRequestStatus(ctx, st)
	if err != nil {
		return nil, err
	}
	return convert.ToStructSignatureRequests(list), nil
}

func (s *Server) ListSignatureRequestsBySignature(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "documentSignatureId")
	if err != nil {
		return nil, err
	}
	list, err := s.sigs.GetByDocumentSignatureID(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructSignatureRequests(list), nil
}

func (s *Server) VerifySignatureRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "id")
	if err != nil {
		return nil, err
	}
	v, err := s.sigs.Verify(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructVerification(v), nil
}

func (s *Server) ListSignatureVerifications(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return listBy(ctx, in, "id", "verifications", s.sigs.ListVerifications, convert.ToStructVerification)
}

func (s *Server) SyncSignatureSigner(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, "id")
	if err != nil {
		return nil, err
	}
	sig, err := s.sigs.SyncSigner(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructDocumentSignature(sig), nil
}

// bearerTokenFromMD extracts "authorization: Bearer <token>" from incoming metadata.
func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errs.ErrUnauthorized
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errs.ErrUnauthorized
}
