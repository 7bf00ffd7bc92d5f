package convert

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/ecm-core/internal/model"
)

func optStr(p *string) *structpb.Value {
	if p == nil {
		return structpb.NewNullValue()
	}
	return str(*p)
}

func optInt(p *int) *structpb.Value {
	if p == nil {
		return structpb.NewNullValue()
	}
	return num(*p)
}

func optBool(p *bool) *structpb.Value {
	if p == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewBoolValue(*p)
}

// FromStructFolder reads a folder.
func FromStructFolder(s *structpb.Struct) (*model.Folder, error) {
	r := Read(s)
	f := &model.Folder{
		ID:            r.UUID("id"),
		Name:          r.String("name"),
		ParentID:      r.OptUUID("parentId"),
		TenantID:      r.String("tenantId"),
		SecurityLevel: int(r.Int64("securityLevel")),
		SystemFolder:  r.Bool("systemFolder"),
	}
	f.Version = r.Int64("version")
	if r.Err != nil {
		return nil, r.Err
	}
	return f, nil
}

// ToStructFolder renders a folder.
func ToStructFolder(f *model.Folder) *structpb.Struct {
	out := map[string]*structpb.Value{
		"id":            str(f.ID.String()),
		"name":          str(f.Name),
		"parentId":      optID(f.ParentID),
		"tenantId":      str(f.TenantID),
		"securityLevel": num(f.SecurityLevel),
		"systemFolder":  structpb.NewBoolValue(f.SystemFolder),
	}
	auditFields(out, f.Audit)
	return &structpb.Struct{Fields: out}
}

// FromStructTag reads a tag.
func FromStructTag(s *structpb.Struct) (*model.Tag, error) {
	r := Read(s)
	t := &model.Tag{
		ID:       r.UUID("id"),
		Name:     r.String("name"),
		Color:    r.String("color"),
		TenantID: r.String("tenantId"),
	}
	t.Version = r.Int64("version")
	if r.Err != nil {
		return nil, r.Err
	}
	return t, nil
}

// ToStructTag renders a tag.
func ToStructTag(t *model.Tag) *structpb.Struct {
	out := map[string]*structpb.Value{
		"id":       str(t.ID.String()),
		"name":     str(t.Name),
		"color":    str(t.Color),
		"tenantId": str(t.TenantID),
	}
	auditFields(out, t.Audit)
	return &structpb.Struct{Fields: out}
}

// FromStructPermission reads a permission grant or denial. granted defaults to true.
func FromStructPermission(s *structpb.Struct) (*model.DocumentPermission, error) {
	r := Read(s)
	p := &model.DocumentPermission{
		ID:            r.UUID("id"),
		DocumentID:    r.UUID("documentId"),
		Principal:     r.String("principal"),
		PrincipalType: r.String("principalType"),
		Permission:    model.PermissionType(r.String("permission")),
		Granted:       true,
		ExpiresAt:     r.OptTime("expiresAt"),
	}
	if g := r.OptBool("granted"); g != nil {
		p.Granted = *g
	}
	p.Version = r.Int64("version")
	if r.Err != nil {
		return nil, r.Err
	}
	return p, nil
}

// ToStructPermission renders a permission.
func ToStructPermission(p *model.DocumentPermission) *structpb.Struct {
	out := map[string]*structpb.Value{
		"id":            str(p.ID.String()),
		"documentId":    str(p.DocumentID.String()),
		"principal":     str(p.Principal),
		"principalType": str(p.PrincipalType),
		"permission":    str(string(p.Permission)),
		"granted":       structpb.NewBoolValue(p.Granted),
		"expiresAt":     optTS(p.ExpiresAt),
	}
	auditFields(out, p.Audit)
	return &structpb.Struct{Fields: out}
}

// FromStructDocumentSignature reads a signer record. Absent optional fields stay
// nil so that configured defaults apply when the request is sent.
func FromStructDocumentSignature(s *structpb.Struct) (*model.DocumentSignature, error) {
	r := Read(s)
	sig := &model.DocumentSignature{
		ID:                     r.UUID("id"),
		DocumentID:             r.UUID("documentId"),
		SignerName:             r.String("signerName"),
		SignerEmail:            r.String("signerEmail"),
		SignerRole:             r.OptString("signerRole"),
		SigningOrder:           r.OptInt("signingOrder"),
		Required:               r.OptBool("required"),
		CustomSignatureMessage: r.OptString("customSignatureMessage"),
		Language:               r.OptString("language"),
		ExpiresAt:              r.OptTime("expiresAt"),
		Provider:               r.String("provider"),
		Status:                 model.SignatureStatus(r.String("status")),
	}
	sig.Version = r.Int64("version")
	if r.Err != nil {
		return nil, r.Err
	}
	return sig, nil
}

// ToStructDocumentSignature renders a signer record.
func ToStructDocumentSignature(sig *model.DocumentSignature) *structpb.Struct {
	out := map[string]*structpb.Value{
		"id":                     str(sig.ID.String()),
		"documentId":             str(sig.DocumentID.String()),
		"signerName":             str(sig.SignerName),
		"signerEmail":            str(sig.SignerEmail),
		"signerRole":             optStr(sig.SignerRole),
		"signingOrder":           optInt(sig.SigningOrder),
		"required":               optBool(sig.Required),
		"customSignatureMessage": optStr(sig.CustomSignatureMessage),
		"language":               optStr(sig.Language),
		"expiresAt":              optTS(sig.ExpiresAt),
		"provider":               str(sig.Provider),
		"status":                 str(string(sig.Status)),
		"signedAt":               optTS(sig.SignedAt),
	}
	auditFields(out, sig.Audit)
	return &structpb.Struct{Fields: out}
}
