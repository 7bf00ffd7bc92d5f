package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// DocumentSignatureRepo implements DocumentSignatureRepository using PostgreSQL.
type DocumentSignatureRepo struct{ db *DB }

// NewDocumentSignatureRepo constructs a document signature repository.
func NewDocumentSignatureRepo(db *DB) *DocumentSignatureRepo { return &DocumentSignatureRepo{db: db} }

const signatureCols = `id, document_id, signer_name, signer_email, signer_role, signing_order, required,
custom_signature_message, language, expires_at, provider, status, signed_at,
created_at, updated_at, created_by, updated_by, version`

func scanSignature(row pgx.Row) (*model.DocumentSignature, error) {
	var s model.DocumentSignature
	if err := row.Scan(&s.ID, &s.DocumentID, &s.SignerName, &s.SignerEmail, &s.SignerRole, &s.SigningOrder,
		&s.Required, &s.CustomSignatureMessage, &s.Language, &s.ExpiresAt, &s.Provider, &s.Status, &s.SignedAt,
		&s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.UpdatedBy, &s.Version); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *DocumentSignatureRepo) Get(ctx context.Context, id uuid.UUID) (*model.DocumentSignature, error) {
	const q = `SELECT ` + signatureCols + ` FROM document_signatures WHERE id=$1`
	return getOne(ctx, r.db, scanSignature, q, id)
}

func (r *DocumentSignatureRepo) Insert(ctx context.Context, s *model.DocumentSignature) error {
	const q = `
INSERT INTO document_signatures (` + signatureCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.DocumentID, s.SignerName, s.SignerEmail, s.SignerRole,
		s.SigningOrder, s.Required, s.CustomSignatureMessage, s.Language, s.ExpiresAt, s.Provider, s.Status,
		s.SignedAt, s.CreatedAt, s.UpdatedAt, s.CreatedBy, s.UpdatedBy, s.Version)
	return insertErr(err)
}

func (r *DocumentSignatureRepo) Update(ctx context.Context, s *model.DocumentSignature, expectedVersion int64) error {
	const q = `
UPDATE document_signatures
SET signer_name=$2, signer_email=$3, signer_role=$4, signing_order=$5, required=$6,
    custom_signature_message=$7, language=$8, expires_at=$9, provider=$10, status=$11, signed_at=$12,
    updated_at=$13, updated_by=$14, version=version+1
WHERE id=$1 AND version=$15`
	return versionedUpdate(r.db.Pool.Exec(ctx, q, s.ID, s.SignerName, s.SignerEmail, s.SignerRole,
		s.SigningOrder, s.Required, s.CustomSignatureMessage, s.Language, s.ExpiresAt, s.Provider, s.Status,
		s.SignedAt, s.UpdatedAt, s.UpdatedBy, expectedVersion))
}

func (r *DocumentSignatureRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM document_signatures WHERE id=$1`
	return deleteOne(r.db.Pool.Exec(ctx, q, id))
}

func (r *DocumentSignatureRepo) List(ctx context.Context, page repository.Page) ([]*model.DocumentSignature, error) {
	const q = `SELECT ` + signatureCols + ` FROM document_signatures ORDER BY created_at, id LIMIT $1 OFFSET $2`
	limit, offset := limitOffset(page)
	return getAll(ctx, r.db, scanSignature, q, limit, offset)
}

// ListByDocument returns the signer records of a document.
func (r *DocumentSignatureRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentSignature, error) {
	const q = `SELECT ` + signatureCols + ` FROM document_signatures WHERE document_id=$1 ORDER BY signing_order NULLS LAST, created_at`
	return getAll(ctx, r.db, scanSignature, q, documentID)
}
