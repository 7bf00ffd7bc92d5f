package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
)

// VersionRepo implements VersionRepository using PostgreSQL. Rows are insert-only.
type VersionRepo struct{ db *DB }

// NewVersionRepo constructs a document version repository.
func NewVersionRepo(db *DB) *VersionRepo { return &VersionRepo{db: db} }

const versionCols = `id, document_id, version_number, file_name, file_extension, mime_type, file_size,
storage_type, storage_path, encrypted, change_summary, major, created_at, created_by`

func scanVersion(row pgx.Row) (*model.DocumentVersion, error) {
	var v model.DocumentVersion
	if err := row.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.FileName, &v.FileExtension, &v.MimeType,
		&v.FileSize, &v.StorageType, &v.StoragePath, &v.Encrypted, &v.ChangeSummary, &v.Major,
		&v.CreatedAt, &v.CreatedBy); err != nil {
		return nil, err
	}
	return &v, nil
}

// Insert stores a new version; a duplicate version number yields errs.ErrAlreadyExists.
func (r *VersionRepo) Insert(ctx context.Context, v *model.DocumentVersion) error {
	const q = `
INSERT INTO document_versions (` + versionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.db.Pool.Exec(ctx, q, v.ID, v.DocumentID, v.VersionNumber, v.FileName, v.FileExtension,
		v.MimeType, v.FileSize, v.StorageType, v.StoragePath, v.Encrypted, v.ChangeSummary, v.Major,
		v.CreatedAt, v.CreatedBy)
	return insertErr(err)
}

func (r *VersionRepo) Get(ctx context.Context, id uuid.UUID) (*model.DocumentVersion, error) {
	const q = `SELECT ` + versionCols + ` FROM document_versions WHERE id=$1`
	return getOne(ctx, r.db, scanVersion, q, id)
}

func (r *VersionRepo) Latest(ctx context.Context, documentID uuid.UUID) (*model.DocumentVersion, error) {
	const q = `SELECT ` + versionCols + ` FROM document_versions WHERE document_id=$1 ORDER BY version_number DESC LIMIT 1`
	return getOne(ctx, r.db, scanVersion, q, documentID)
}

func (r *VersionRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentVersion, error) {
	const q = `SELECT ` + versionCols + ` FROM document_versions WHERE document_id=$1 ORDER BY version_number ASC`
	return getAll(ctx, r.db, scanVersion, q, documentID)
}
