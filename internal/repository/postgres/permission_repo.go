package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// PermissionRepo implements PermissionRepository using PostgreSQL.
type PermissionRepo struct{ db *DB }

// NewPermissionRepo constructs a permission repository.
func NewPermissionRepo(db *DB) *PermissionRepo { return &PermissionRepo{db: db} }

const permissionCols = `id, document_id, principal, principal_type, permission, granted, expires_at,
created_at, updated_at, created_by, updated_by, version`

func scanPermission(row pgx.Row) (*model.DocumentPermission, error) {
	var p model.DocumentPermission
	if err := row.Scan(&p.ID, &p.DocumentID, &p.Principal, &p.PrincipalType, &p.Permission, &p.Granted,
		&p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy, &p.Version); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PermissionRepo) Get(ctx context.Context, id uuid.UUID) (*model.DocumentPermission, error) {
	const q = `SELECT ` + permissionCols + ` FROM document_permissions WHERE id=$1`
	return getOne(ctx, r.db, scanPermission, q, id)
}

func (r *PermissionRepo) Insert(ctx context.Context, p *model.DocumentPermission) error {
	const q = `
INSERT INTO document_permissions (` + permissionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Pool.Exec(ctx, q, p.ID, p.DocumentID, p.Principal, p.PrincipalType, p.Permission, p.Granted,
		p.ExpiresAt, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy, p.Version)
	return insertErr(err)
}

func (r *PermissionRepo) Update(ctx context.Context, p *model.DocumentPermission, expectedVersion int64) error {
	const q = `
UPDATE document_permissions
SET principal=$2, principal_type=$3, permission=$4, granted=$5, expires_at=$6,
    updated_at=$7, updated_by=$8, version=version+1
WHERE id=$1 AND version=$9`
	return versionedUpdate(r.db.Pool.Exec(ctx, q, p.ID, p.Principal, p.PrincipalType, p.Permission, p.Granted,
		p.ExpiresAt, p.UpdatedAt, p.UpdatedBy, expectedVersion))
}

func (r *PermissionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM document_permissions WHERE id=$1`
	return deleteOne(r.db.Pool.Exec(ctx, q, id))
}

func (r *PermissionRepo) List(ctx context.Context, page repository.Page) ([]*model.DocumentPermission, error) {
	const q = `SELECT ` + permissionCols + ` FROM document_permissions ORDER BY created_at, id LIMIT $1 OFFSET $2`
	limit, offset := limitOffset(page)
	return getAll(ctx, r.db, scanPermission, q, limit, offset)
}

// ListByDocument returns every permission row of a document.
func (r *PermissionRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentPermission, error) {
	const q = `SELECT ` + permissionCols + ` FROM document_permissions WHERE document_id=$1 ORDER BY created_at, id`
	return getAll(ctx, r.db, scanPermission, q, documentID)
}
