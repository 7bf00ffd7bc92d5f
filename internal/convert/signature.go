package convert

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/model"
)

// SignatureMapper builds provider-facing signature requests, filling configured
// defaults for fields a signature record leaves nil.
type SignatureMapper struct {
	defaults config.SignatureDefaults
	now      func() time.Time
}

// NewSignatureMapper constructs a mapper. A nil clock means time.Now.
func NewSignatureMapper(defaults config.SignatureDefaults, now func() time.Time) *SignatureMapper {
	if now == nil {
		now = time.Now
	}
	return &SignatureMapper{defaults: defaults, now: now}
}

// ToSignatureRequest maps a signature record of documentID into an ecm.SignatureRequest.
// Without an explicit expiry the request expires ExpirationDays from now.
func (m *SignatureMapper) ToSignatureRequest(sig model.DocumentSignature, documentID uuid.UUID) ecm.SignatureRequest {
	d := m.defaults
	signer := ecm.Signer{
		Name:     sig.SignerName,
		Email:    sig.SignerEmail,
		Role:     strOr(sig.SignerRole, d.SignerRole),
		Order:    intOr(sig.SigningOrder, d.SigningOrder),
		Required: boolOr(sig.Required, d.Required),
	}

	expires := m.now().Add(d.Expiration())
	if sig.ExpiresAt != nil {
		expires = *sig.ExpiresAt
	}

	return ecm.SignatureRequest{
		DocumentID:  documentID,
		SignatureID: sig.ID,
		Provider:    sig.Provider,
		Message:     strOr(sig.CustomSignatureMessage, d.Message),
		Language:    strOr(sig.Language, d.Language),
		Signers:     []ecm.Signer{signer},
		ExpiresAt:   expires,
	}
}

// ForRequest maps a persisted request and its signature record. Request-level
// provider and expiration take precedence over the signature record's.
func (m *SignatureMapper) ForRequest(req model.SignatureRequest, sig model.DocumentSignature) ecm.SignatureRequest {
	out := m.ToSignatureRequest(sig, req.DocumentID)
	out.RequestID = req.ID
	out.ProviderRequestID = req.ProviderRequestID
	if req.Provider != "" {
		out.Provider = req.Provider
	}
	if req.ExpirationDate != nil {
		out.ExpiresAt = *req.ExpirationDate
	}
	return out
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
