package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// FolderRepo implements FolderRepository using PostgreSQL.
type FolderRepo struct{ db *DB }

// NewFolderRepo constructs a folder repository.
func NewFolderRepo(db *DB) *FolderRepo { return &FolderRepo{db: db} }

const folderCols = `id, name, parent_id, tenant_id, security_level, system_folder,
created_at, updated_at, created_by, updated_by, version`

func scanFolder(row pgx.Row) (*model.Folder, error) {
	var f model.Folder
	if err := row.Scan(&f.ID, &f.Name, &f.ParentID, &f.TenantID, &f.SecurityLevel, &f.SystemFolder,
		&f.CreatedAt, &f.UpdatedAt, &f.CreatedBy, &f.UpdatedBy, &f.Version); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FolderRepo) Get(ctx context.Context, id uuid.UUID) (*model.Folder, error) {
	const q = `SELECT ` + folderCols + ` FROM folders WHERE id=$1`
	return getOne(ctx, r.db, scanFolder, q, id)
}

func (r *FolderRepo) Insert(ctx context.Context, f *model.Folder) error {
	const q = `
INSERT INTO folders (` + folderCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.Pool.Exec(ctx, q, f.ID, f.Name, f.ParentID, f.TenantID, f.SecurityLevel, f.SystemFolder,
		f.CreatedAt, f.UpdatedAt, f.CreatedBy, f.UpdatedBy, f.Version)
	return insertErr(err)
}

func (r *FolderRepo) Update(ctx context.Context, f *model.Folder, expectedVersion int64) error {
	const q = `
UPDATE folders
SET name=$2, parent_id=$3, tenant_id=$4, security_level=$5, system_folder=$6,
    updated_at=$7, updated_by=$8, version=version+1
WHERE id=$1 AND version=$9`
	return versionedUpdate(r.db.Pool.Exec(ctx, q, f.ID, f.Name, f.ParentID, f.TenantID, f.SecurityLevel,
		f.SystemFolder, f.UpdatedAt, f.UpdatedBy, expectedVersion))
}

func (r *FolderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM folders WHERE id=$1`
	return deleteOne(r.db.Pool.Exec(ctx, q, id))
}

func (r *FolderRepo) List(ctx context.Context, page repository.Page) ([]*model.Folder, error) {
	const q = `SELECT ` + folderCols + ` FROM folders ORDER BY created_at, id LIMIT $1 OFFSET $2`
	limit, offset := limitOffset(page)
	return getAll(ctx, r.db, scanFolder, q, limit, offset)
}

// ListChildren returns direct children of parentID, or root folders for nil.
func (r *FolderRepo) ListChildren(ctx context.Context, parentID *uuid.UUID) ([]*model.Folder, error) {
	if parentID == nil {
		const q = `SELECT ` + folderCols + ` FROM folders WHERE parent_id IS NULL ORDER BY name`
		return getAll(ctx, r.db, scanFolder, q)
	}
	const q = `SELECT ` + folderCols + ` FROM folders WHERE parent_id=$1 ORDER BY name`
	return getAll(ctx, r.db, scanFolder, q, *parentID)
}
