package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/ecm-core/internal/convert"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "%s is not configured", name)
}

// listBy reads a mandatory id and renders the listed items under key.
func listBy[T any](ctx context.Context, in *structpb.Struct, idKey, key string,
	list func(context.Context, uuid.UUID) ([]T, error), conv func(T) *structpb.Struct,
) (*structpb.Struct, error) {
	id, err := convert.RequireID(in, idKey)
	if err != nil {
		return nil, err
	}
	items, err := list(ctx, id)
	if err != nil {
		return nil, err
	}
	return convert.ToStructList(key, items, conv), nil
}

// --- Documents ---

func (s *Server) ListDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(in)
	folder := r.OptUUID("folderId")
	page := repository.Page{Limit: int(r.Int64("limit")), Offset: int(r.Int64("offset"))}
	if r.Err != nil {
		return nil, r.Err
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	var (
		docs []*model.Document
		err  error
	)
	if folder != nil {
		docs, err = s.docs.ListByFolder(ctx, folder, page)
	} else {
		docs, err = s.docs.List(ctx, page)
	}
	if err != nil {
		return nil, err
	}
	return convert.ToStructList("documents", docs, convert.ToStructDocument), nil
}

func (s *Server) ListDocumentVersions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.versions == nil {
		return nil, unimplemented("versions")
	}
	return listBy(ctx, in, "documentId", "versions", s.versions.ListByDocument, convert.ToStructVersion)
}

// --- Folders ---

func (s *Server) CreateFolder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.folders == nil {
		return nil, unimplemented("folders")
	}
	f, err := convert.FromStructFolder(in)
	if err != nil {
		return nil, err
	}
	out, err := s.folders.Create(ctx, f)
	if err != nil {
		return nil, err
	}
	return convert.ToStructFolder(out), nil
}

func (s *Server) ListFolderChildren(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.folders == nil {
		return nil, unimplemented("folders")
	}
	r := convert.Read(in)
	parent := r.OptUUID("parentId")
	if r.Err != nil {
		return nil, r.Err
	}
	list, err := s.folders.ListChildren(ctx, parent)
	if err != nil {
		return nil, err
	}
	return convert.ToStructList("folders", list, convert.ToStructFolder), nil
}

// --- Tags ---

func (s *Server) CreateTag(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.tags == nil {
		return nil, unimplemented("tags")
	}
	t, err := convert.FromStructTag(in)
	if err != nil {
		return nil, err
	}
	out, err := s.tags.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	return convert.ToStructTag(out), nil
}

func (s *Server) tagPair(in *structpb.Struct) (doc, tag uuid.UUID, err error) {
	if doc, err = convert.RequireID(in, "documentId"); err != nil {
		return
	}
	tag, err = convert.RequireID(in, "tagId")
	return
}

func (s *Server) AssignTag(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.tags == nil {
		return nil, unimplemented("tags")
	}
	doc, tag, err := s.tagPair(in)
	if err != nil {
		return nil, err
	}
	if err := s.tags.Assign(ctx, doc, tag); err != nil {
		return nil, err
	}
	return convert.Empty(), nil
}

func (s *Server) UnassignTag(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.tags == nil {
		return nil, unimplemented("tags")
	}
	doc, tag, err := s.tagPair(in)
	if err != nil {
		return nil, err
	}
	if err := s.tags.Unassign(ctx, doc, tag); err != nil {
		return nil, err
	}
	return convert.Empty(), nil
}

func (s *Server) ListDocumentTags(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.tags == nil {
		return nil, unimplemented("tags")
	}
	return listBy(ctx, in, "documentId", "tags", s.tags.ListForDocument, convert.ToStructTag)
}

// --- Permissions ---

func (s *Server) GrantPermission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.perms == nil {
		return nil, unimplemented("permissions")
	}
	p, err := convert.FromStructPermission(in)
	if err != nil {
		return nil, err
	}
	out, err := s.perms.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	return convert.ToStructPermission(out), nil
}

func (s *Server) RevokePermission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.perms == nil {
		return nil, unimplemented("permissions")
	}
	id, err := convert.RequireID(in, "id")
	if err != nil {
		return nil, err
	}
	if err := s.perms.Delete(ctx, id); err != nil {
		return nil, err
	}
	return convert.Empty(), nil
}

func (s *Server) ListDocumentPermissions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.perms == nil {
		return nil, unimplemented("permissions")
	}
	return listBy(ctx, in, "documentId", "permissions", s.perms.ListByDocument, convert.ToStructPermission)
}

// --- Signer records ---

func (s *Server) CreateDocumentSignature(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.signers == nil {
		return nil, unimplemented("document signatures")
	}
	sig, err := convert.FromStructDocumentSignature(in)
	if err != nil {
		return nil, err
	}
	out, err := s.signers.Create(ctx, sig)
	if err != nil {
		return nil, err
	}
	return convert.ToStructDocumentSignature(out), nil
}

func (s *Server) ListDocumentSignatures(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.signers == nil {
		return nil, unimplemented("document signatures")
	}
	return listBy(ctx, in, "documentId", "signatures", s.signers.ListByDocument, convert.ToStructDocumentSignature)
}
