// Package ecm defines the port-layer domain model exchanged with storage and
// e-signature extensions, and the extension contracts themselves.
package ecm

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/model"
)

// Extension point identifiers.
const (
	StoragePoint   = "ecm.document-storage"
	SignaturePoint = "ecm.signature-provider"
)

// Location addresses stored content inside a backend.
type Location struct {
	StorageType string
	Path        string
}

// UploadRequest asks a backend for a direct upload target.
type UploadRequest struct {
	DocumentID  uuid.UUID
	StorageType string
	Path        string
	FileName    string
	MimeType    string
	Size        int64
}

// UploadTicket is a time-limited direct upload target.
type UploadTicket struct {
	URL       string
	Method    string
	Location  Location
	Headers   map[string]string
	ExpiresAt time.Time
}

// UploadConfirmation describes content found at a location after the client uploaded it.
type UploadConfirmation struct {
	Location    Location
	Size        int64
	ETag        string
	ContentType string
}

// DownloadLink is a time-limited direct download URL.
type DownloadLink struct {
	URL       string
	ExpiresAt time.Time
}

// DocumentStorageExtension is implemented by content storage backends.
type DocumentStorageExtension interface {
	Name() string
	SupportsStorageType(storageType string) bool
	GenerateUploadURL(ctx context.Context, req UploadRequest) (UploadTicket, error)
	ConfirmUpload(ctx context.Context, loc Location) (UploadConfirmation, error)
	GenerateDownloadURL(ctx context.Context, loc Location, fileName string) (DownloadLink, error)
	DeleteDocument(ctx context.Context, loc Location) error
}

// Signer is one party asked to sign.
type Signer struct {
	Name     string
	Email    string
	Role     string
	Order    int
	Required bool
}

// SignatureRequest is the value handed to e-signature providers.
type SignatureRequest struct {
	RequestID         uuid.UUID
	DocumentID        uuid.UUID
	SignatureID       uuid.UUID
	Provider          string // empty means any provider
	ProviderRequestID string // known after Send
	Message           string
	Language          string
	Signers           []Signer
	ExpiresAt         time.Time
}

// SendResult is returned by a provider after dispatching a request.
type SendResult struct {
	ProviderRequestID string
	Status            model.SignatureStatus
	SentAt            time.Time
}

// StatusResult is a provider's view of a request.
type StatusResult struct {
	ProviderRequestID string
	Status            model.SignatureStatus
	UpdatedAt         time.Time
}

// Proof is a provider-issued evidence artifact.
type Proof struct {
	URL      string
	Hash     string
	IssuedAt time.Time
}

// VerificationResult is a provider's verification verdict.
type VerificationResult struct {
	Valid      bool
	VerifiedAt time.Time
	Details    string
	Proof      *Proof
}

// SignerStatus reports progress of a single signer.
type SignerStatus struct {
	Name     string
	Email    string
	Status   model.SignatureStatus
	SignedAt *time.Time
}

// SignatureProviderExtension is implemented by e-signature vendors.
type SignatureProviderExtension interface {
	Name() string
	SupportsRequest(req SignatureRequest) bool
	Send(ctx context.Context, req SignatureRequest) (SendResult, error)
	CheckStatus(ctx context.Context, req SignatureRequest) (StatusResult, error)
	Verify(ctx context.Context, req SignatureRequest) (VerificationResult, error)
	Cancel(ctx context.Context, req SignatureRequest) error
	FetchSigners(ctx context.Context, req SignatureRequest) ([]SignerStatus, error)
}
