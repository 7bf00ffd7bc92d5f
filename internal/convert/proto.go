package convert

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
)

// --- helpers ---

func str(s string) *structpb.Value { return structpb.NewStringValue(s) }

func num[N int | int64](n N) *structpb.Value { return structpb.NewNumberValue(float64(n)) }

func ts(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewNullValue()
	}
	return str(t.UTC().Format(time.RFC3339Nano))
}

func optTS(t *time.Time) *structpb.Value {
	if t == nil {
		return structpb.NewNullValue()
	}
	return ts(*t)
}

func optID(id *uuid.UUID) *structpb.Value {
	if id == nil {
		return structpb.NewNullValue()
	}
	return str(id.String())
}

func auditFields(f map[string]*structpb.Value, a model.Audit) {
	f["createdAt"] = ts(a.CreatedAt)
	f["updatedAt"] = ts(a.UpdatedAt)
	f["createdBy"] = str(a.CreatedBy)
	f["updatedBy"] = str(a.UpdatedBy)
	f["version"] = num(a.Version)
}

// Fields reads typed values out of a request Struct. The first failure is kept
// in Err and later reads return zero values.
type Fields struct {
	f   map[string]*structpb.Value
	Err error
}

// Read wraps s; a nil s reads as empty.
func Read(s *structpb.Struct) *Fields {
	return &Fields{f: s.GetFields()}
}

func (r *Fields) fail(key, want string) {
	if r.Err == nil {
		r.Err = errs.Validation("field %s: want %s", key, want)
	}
}

// get returns the value for key unless it is absent or null.
func (r *Fields) get(key string) (*structpb.Value, bool) {
	v, ok := r.f[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

// String returns key as a string; absent reads as "".
func (r *Fields) String(key string) string {
	v, ok := r.get(key)
	if !ok {
		return ""
	}
	s, isStr := v.GetKind().(*structpb.Value_StringValue)
	if !isStr {
		r.fail(key, "string")
		return ""
	}
	return s.StringValue
}

// Number returns key as a float64; absent reads as 0.
func (r *Fields) Number(key string) float64 {
	v, ok := r.get(key)
	if !ok {
		return 0
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		r.fail(key, "number")
		return 0
	}
	return n.NumberValue
}

// Int64 returns key as an integer.
func (r *Fields) Int64(key string) int64 {
	n := r.Number(key)
	if n != float64(int64(n)) {
		r.fail(key, "integer")
		return 0
	}
	return int64(n)
}

// Bool returns key as a bool; absent reads as false.
func (r *Fields) Bool(key string) bool {
	v, ok := r.get(key)
	if !ok {
		return false
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		r.fail(key, "bool")
		return false
	}
	return b.BoolValue
}

// UUID returns key as a UUID; absent reads as uuid.Nil.
func (r *Fields) UUID(key string) uuid.UUID {
	s := r.String(key)
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.FromString(s)
	if err != nil {
		r.fail(key, "uuid")
		return uuid.Nil
	}
	return id
}

// OptUUID returns nil when key is absent or null.
func (r *Fields) OptUUID(key string) *uuid.UUID {
	id := r.UUID(key)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// OptTime parses an RFC 3339 timestamp; nil when absent.
func (r *Fields) OptTime(key string) *time.Time {
	s := r.String(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		r.fail(key, "RFC 3339 timestamp")
		return nil
	}
	return &t
}

// OptString returns nil when key is absent or null.
func (r *Fields) OptString(key string) *string {
	if _, ok := r.get(key); !ok {
		return nil
	}
	v := r.String(key)
	return &v
}

// OptInt returns nil when key is absent or null.
func (r *Fields) OptInt(key string) *int {
	if _, ok := r.get(key); !ok {
		return nil
	}
	v := int(r.Int64(key))
	return &v
}

// OptBool returns nil when key is absent or null.
func (r *Fields) OptBool(key string) *bool {
	if _, ok := r.get(key); !ok {
		return nil
	}
	v := r.Bool(key)
	return &v
}

// --- Documents ---

// FromStructDocument reads a document; id and version are optional.
func FromStructDocument(s *structpb.Struct) (*model.Document, error) {
	r := Read(s)
	d := &model.Document{
		ID:          r.UUID("id"),
		Title:       r.String("title"),
		Description: r.String("description"),
		Type:        r.String("type"),
		Status:      model.DocumentStatus(r.String("status")),
		FolderID:    r.OptUUID("folderId"),
		TenantID:    r.String("tenantId"),
		Department:  r.String("department"),
	}
	d.Version = r.Int64("version")
	if r.Err != nil {
		return nil, r.Err
	}
	return d, nil
}

// ToStructDocument renders a document.
func ToStructDocument(d *model.Document) *structpb.Struct {
	f := map[string]*structpb.Value{
		"id":          str(d.ID.String()),
		"title":       str(d.Title),
		"description": str(d.Description),
		"type":        str(d.Type),
		"status":      str(string(d.Status)),
		"folderId":    optID(d.FolderID),
		"tenantId":    str(d.TenantID),
		"department":  str(d.Department),
	}
	auditFields(f, d.Audit)
	return &structpb.Struct{Fields: f}
}

// ToStructVersion renders a document version.
func ToStructVersion(v *model.DocumentVersion) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":            str(v.ID.String()),
		"documentId":    str(v.DocumentID.String()),
		"versionNumber": num(v.VersionNumber),
		"fileName":      str(v.FileName),
		"fileExtension": str(v.FileExtension),
		"mimeType":      str(v.MimeType),
		"fileSize":      num(v.FileSize),
		"storageType":   str(v.StorageType),
		"storagePath":   str(v.StoragePath),
		"changeSummary": str(v.ChangeSummary),
		"major":         structpb.NewBoolValue(v.Major),
		"createdAt":     ts(v.CreatedAt),
		"createdBy":     str(v.CreatedBy),
	}}
}

// --- Content ---

// ToStructUploadTicket renders an upload ticket.
func ToStructUploadTicket(t ecm.UploadTicket) *structpb.Struct {
	headers := make(map[string]*structpb.Value, len(t.Headers))
	for k, v := range t.Headers {
		headers[k] = str(v)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"url":         str(t.URL),
		"method":      str(t.Method),
		"storageType": str(t.Location.StorageType),
		"path":        str(t.Location.Path),
		"headers":     structpb.NewStructValue(&structpb.Struct{Fields: headers}),
		"expiresAt":   ts(t.ExpiresAt),
	}}
}

// ToStructDownloadLink renders a download link.
func ToStructDownloadLink(l ecm.DownloadLink) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"url":       str(l.URL),
		"expiresAt": ts(l.ExpiresAt),
	}}
}

// --- Signature requests ---

// FromStructSignatureRequest reads the caller-settable fields of a signature request.
func FromStructSignatureRequest(s *structpb.Struct) (*model.SignatureRequest, error) {
	r := Read(s)
	out := &model.SignatureRequest{
		DocumentID:          r.UUID("documentId"),
		DocumentSignatureID: r.UUID("documentSignatureId"),
		ReferenceCode:       r.String("referenceCode"),
		Provider:            r.String("provider"),
		Status:              model.SignatureStatus(r.String("status")),
		ExpirationDate:      r.OptTime("expirationDate"),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return out, nil
}

// ToStructSignatureRequest renders a signature request.
func ToStructSignatureRequest(sr *model.SignatureRequest) *structpb.Struct {
	f := map[string]*structpb.Value{
		"id":                  str(sr.ID.String()),
		"documentId":          str(sr.DocumentID.String()),
		"documentSignatureId": str(sr.DocumentSignatureID.String()),
		"referenceCode":       str(sr.ReferenceCode),
		"provider":            str(sr.Provider),
		"providerRequestId":   str(sr.ProviderRequestID),
		"status":              str(string(sr.Status)),
		"expirationDate":      optTS(sr.ExpirationDate),
		"notificationSent":    structpb.NewBoolValue(sr.NotificationSent),
		"notificationSentAt":  optTS(sr.NotificationSentAt),
		"reminderCount":       num(sr.ReminderCount),
		"lastReminderAt":      optTS(sr.LastReminderAt),
	}
	auditFields(f, sr.Audit)
	return &structpb.Struct{Fields: f}
}

// ToStructSignatureRequests renders a list under "requests" with its "count".
func ToStructSignatureRequests(list []*model.SignatureRequest) *structpb.Struct {
	return ToStructList("requests", list, ToStructSignatureRequest)
}

// ToStructVerification renders a verification verdict; "proof" is null when the
// provider issued none.
func ToStructVerification(v *model.SignatureVerification) *structpb.Struct {
	proof := structpb.NewNullValue()
	if p := v.Proof; p != nil {
		proof = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"signatureId": str(p.SignatureID.String()),
			"url":         str(p.ProofURL),
			"hash":        str(p.Hash),
			"issuedAt":    ts(p.IssuedAt),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":                 str(v.ID.String()),
		"signatureRequestId": str(v.SignatureRequestID.String()),
		"signatureId":        str(v.SignatureID.String()),
		"valid":              structpb.NewBoolValue(v.Valid),
		"verifiedAt":         ts(v.VerifiedAt),
		"details":            str(v.Details),
		"proof":              proof,
	}}
}

// ToStructList renders items under key together with their "count".
func ToStructList[T any](key string, items []T, conv func(T) *structpb.Struct) *structpb.Struct {
	vals := make([]*structpb.Value, 0, len(items))
	for _, it := range items {
		vals = append(vals, structpb.NewStructValue(conv(it)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		key:     structpb.NewListValue(&structpb.ListValue{Values: vals}),
		"count": num(len(items)),
	}}
}

// Empty is the response of operations without a result.
func Empty() *structpb.Struct { return &structpb.Struct{Fields: map[string]*structpb.Value{}} }

// RequireID reads a mandatory UUID field.
func RequireID(s *structpb.Struct, key string) (uuid.UUID, error) {
	r := Read(s)
	id := r.UUID(key)
	if r.Err != nil {
		return uuid.Nil, r.Err
	}
	if id == uuid.Nil {
		return uuid.Nil, errs.Validation("field %s: required", key)
	}
	return id, nil
}

