package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
)

// SignatureVerificationRepo implements SignatureVerificationRepository using PostgreSQL.
type SignatureVerificationRepo struct{ db *DB }

// NewSignatureVerificationRepo constructs a verification repository.
func NewSignatureVerificationRepo(db *DB) *SignatureVerificationRepo {
	return &SignatureVerificationRepo{db: db}
}

const verificationCols = `id, signature_request_id, document_signature_id, valid, verified_at, details,
proof_url, proof_hash, proof_issued_at`

func scanVerification(row pgx.Row) (*model.SignatureVerification, error) {
	var (
		v        model.SignatureVerification
		url      *string
		hash     *string
		issuedAt *time.Time
	)
	if err := row.Scan(&v.ID, &v.SignatureRequestID, &v.SignatureID, &v.Valid, &v.VerifiedAt, &v.Details,
		&url, &hash, &issuedAt); err != nil {
		return nil, err
	}
	if url != nil {
		v.Proof = &model.SignatureProof{SignatureID: v.SignatureID, ProofURL: *url}
		if hash != nil {
			v.Proof.Hash = *hash
		}
		if issuedAt != nil {
			v.Proof.IssuedAt = *issuedAt
		}
	}
	return &v, nil
}

func (r *SignatureVerificationRepo) Insert(ctx context.Context, v *model.SignatureVerification) error {
	const q = `
INSERT INTO signature_verifications (` + verificationCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	var (
		url      *string
		hash     *string
		issuedAt *time.Time
	)
	if p := v.Proof; p != nil {
		url, hash, issuedAt = &p.ProofURL, &p.Hash, &p.IssuedAt
	}
	_, err := r.db.Pool.Exec(ctx, q, v.ID, v.SignatureRequestID, v.SignatureID, v.Valid, v.VerifiedAt, v.Details,
		url, hash, issuedAt)
	return insertErr(err)
}

// ListByRequest returns the verdicts of a request, newest first.
func (r *SignatureVerificationRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*model.SignatureVerification, error) {
	const q = `SELECT ` + verificationCols + ` FROM signature_verifications
WHERE signature_request_id=$1 ORDER BY verified_at DESC, id`
	return getAll(ctx, r.db, scanVerification, q, requestID)
}
