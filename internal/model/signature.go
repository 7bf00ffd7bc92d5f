package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// SignatureStatus is the state of a signature workflow.
// Observed flow: PENDING -> IN_PROGRESS -> one of the terminal states.
type SignatureStatus string

const (
	SignaturePending    SignatureStatus = "PENDING"
	SignatureInProgress SignatureStatus = "IN_PROGRESS"
	SignatureSigned     SignatureStatus = "SIGNED"
	SignatureRejected   SignatureStatus = "REJECTED"
	SignatureExpired    SignatureStatus = "EXPIRED"
	SignatureRevoked    SignatureStatus = "REVOKED"
	SignatureFailed     SignatureStatus = "FAILED"
	SignatureCanceled   SignatureStatus = "CANCELED"
)

// TerminalSignatureStatuses lists statuses that never transition further.
var TerminalSignatureStatuses = []SignatureStatus{
	SignatureSigned, SignatureRejected, SignatureExpired,
	SignatureRevoked, SignatureFailed, SignatureCanceled,
}

// Terminal reports whether s is a final state.
func (s SignatureStatus) Terminal() bool {
	for _, t := range TerminalSignatureStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s SignatureStatus) Valid() bool {
	return s == SignaturePending || s == SignatureInProgress || s.Terminal()
}

// DocumentSignature is the per-signer record. Nil pointer fields fall back to
// configured defaults when the request is handed to a provider.
type DocumentSignature struct {
	ID                     uuid.UUID
	DocumentID             uuid.UUID
	SignerName             string
	SignerEmail            string
	SignerRole             *string
	SigningOrder           *int
	Required               *bool
	CustomSignatureMessage *string
	Language               *string
	ExpiresAt              *time.Time
	Provider               string
	Status                 SignatureStatus
	SignedAt               *time.Time
	Audit
}

func (s *DocumentSignature) EntityID() uuid.UUID      { return s.ID }
func (s *DocumentSignature) SetEntityID(id uuid.UUID) { s.ID = id }

// SignatureRequest is the signing intent tracked through notification, reminders and expiry.
type SignatureRequest struct {
	ID                  uuid.UUID
	DocumentID          uuid.UUID
	DocumentSignatureID uuid.UUID
	ReferenceCode       string
	Provider            string
	ProviderRequestID   string
	Status              SignatureStatus
	ExpirationDate      *time.Time
	NotificationSent    bool
	NotificationSentAt  *time.Time
	ReminderCount       int
	LastReminderAt      *time.Time
	Audit
}

func (r *SignatureRequest) EntityID() uuid.UUID      { return r.ID }
func (r *SignatureRequest) SetEntityID(id uuid.UUID) { r.ID = id }

// Expired reports whether the request passed its expiration date at now and is still open.
func (r *SignatureRequest) Expired(now time.Time) bool {
	return r.ExpirationDate != nil && r.ExpirationDate.Before(now) && !r.Status.Terminal()
}

// SignatureVerification is a provider's verification verdict for the signature
// behind one request. Each verification call is kept.
type SignatureVerification struct {
	ID                 uuid.UUID
	SignatureRequestID uuid.UUID
	SignatureID        uuid.UUID
	Valid              bool
	VerifiedAt         time.Time
	Details            string
	Proof              *SignatureProof
}

// SignatureProof is a provider-issued evidence artifact.
type SignatureProof struct {
	SignatureID uuid.UUID
	ProofURL    string
	Hash        string
	IssuedAt    time.Time
}
