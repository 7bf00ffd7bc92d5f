package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// SignatureRequestRepo implements SignatureRequestRepository using PostgreSQL.
type SignatureRequestRepo struct{ db *DB }

// NewSignatureRequestRepo constructs a signature request repository.
func NewSignatureRequestRepo(db *DB) *SignatureRequestRepo { return &SignatureRequestRepo{db: db} }

const requestCols = `id, document_id, document_signature_id, reference_code, provider, provider_request_id,
status, expiration_date, notification_sent, notification_sent_at, reminder_count, last_reminder_at,
created_at, updated_at, created_by, updated_by, version`

func scanRequest(row pgx.Row) (*model.SignatureRequest, error) {
	var r model.SignatureRequest
	if err := row.Scan(&r.ID, &r.DocumentID, &r.DocumentSignatureID, &r.ReferenceCode, &r.Provider,
		&r.ProviderRequestID, &r.Status, &r.ExpirationDate, &r.NotificationSent, &r.NotificationSentAt,
		&r.ReminderCount, &r.LastReminderAt, &r.CreatedAt, &r.UpdatedAt, &r.CreatedBy, &r.UpdatedBy,
		&r.Version); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *SignatureRequestRepo) Get(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	const q = `SELECT ` + requestCols + ` FROM signature_requests WHERE id=$1`
	return getOne(ctx, r.db, scanRequest, q, id)
}

func (r *SignatureRequestRepo) Insert(ctx context.Context, s *model.SignatureRequest) error {
	const q = `
INSERT INTO signature_requests (` + requestCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.DocumentID, s.DocumentSignatureID, s.ReferenceCode, s.Provider,
		s.ProviderRequestID, s.Status, s.ExpirationDate, s.NotificationSent, s.NotificationSentAt,
		s.ReminderCount, s.LastReminderAt, s.CreatedAt, s.UpdatedAt, s.CreatedBy, s.UpdatedBy, s.Version)
	return insertErr(err)
}

func (r *SignatureRequestRepo) Update(ctx context.Context, s *model.SignatureRequest, expectedVersion int64) error {
	const q = `
UPDATE signature_requests
SET reference_code=$2, provider=$3, provider_request_id=$4, status=$5, expiration_date=$6,
    notification_sent=$7, notification_sent_at=$8, reminder_count=$9, last_reminder_at=$10,
    updated_at=$11, updated_by=$12, version=version+1
WHERE id=$1 AND version=$13`
	return versionedUpdate(r.db.Pool.Exec(ctx, q, s.ID, s.ReferenceCode, s.Provider, s.ProviderRequestID,
		s.Status, s.ExpirationDate, s.NotificationSent, s.NotificationSentAt, s.ReminderCount,
		s.LastReminderAt, s.UpdatedAt, s.UpdatedBy, expectedVersion))
}

func (r *SignatureRequestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM signature_requests WHERE id=$1`
	return deleteOne(r.db.Pool.Exec(ctx, q, id))
}

func (r *SignatureRequestRepo) List(ctx context.Context, page repository.Page) ([]*model.SignatureRequest, error) {
	const q = `SELECT ` + requestCols + ` FROM signature_requests ORDER BY created_at, id LIMIT $1 OFFSET $2`
	limit, offset := limitOffset(page)
	return getAll(ctx, r.db, scanRequest, q, limit, offset)
}

// ListByStatus returns requests in the given status.
func (r *SignatureRequestRepo) ListByStatus(ctx context.Context, status model.SignatureStatus) ([]*model.SignatureRequest, error) {
	const q = `SELECT ` + requestCols + ` FROM signature_requests WHERE status=$1 ORDER BY created_at, id`
	return getAll(ctx, r.db, scanRequest, q, status)
}

// ListByDocumentSignatureID returns requests linked to a signer record.
func (r *SignatureRequestRepo) ListByDocumentSignatureID(ctx context.Context, signatureID uuid.UUID) ([]*model.SignatureRequest, error) {
	const q = `SELECT ` + requestCols + ` FROM signature_requests WHERE document_signature_id=$1 ORDER BY created_at, id`
	return getAll(ctx, r.db, scanRequest, q, signatureID)
}

// ListExpirable returns open requests whose expiration date passed before now.
func (r *SignatureRequestRepo) ListExpirable(ctx context.Context, now time.Time) ([]*model.SignatureRequest, error) {
	const q = `
SELECT ` + requestCols + `
FROM signature_requests
WHERE expiration_date < $1 AND status IN ($2, $3)
ORDER BY expiration_date, id`
	return getAll(ctx, r.db, scanRequest, q, now, model.SignaturePending, model.SignatureInProgress)
}
