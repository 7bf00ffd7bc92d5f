package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

const documentCols = `id, title, description, type, status, folder_id, tenant_id, department,
created_at, updated_at, created_by, updated_by, version`

func scanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Type, &d.Status, &d.FolderID,
		&d.TenantID, &d.Department, &d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy, &d.Version); err != nil {
		return nil, err
	}
	return &d, nil
}

// Get selects a document by ID.
func (r *DocumentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	const q = `SELECT ` + documentCols + ` FROM documents WHERE id=$1`
	return getOne(ctx, r.db, scanDocument, q, id)
}

// Insert stores a new document row.
func (r *DocumentRepo) Insert(ctx context.Context, d *model.Document) error {
	const q = `
INSERT INTO documents (` + documentCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.Pool.Exec(ctx, q, d.ID, d.Title, d.Description, d.Type, d.Status, d.FolderID,
		d.TenantID, d.Department, d.CreatedAt, d.UpdatedAt, d.CreatedBy, d.UpdatedBy, d.Version)
	return insertErr(err)
}

// Update overwrites mutable columns with optimistic version check.
func (r *DocumentRepo) Update(ctx context.Context, d *model.Document, expectedVersion int64) error {
	const q = `
UPDATE documents
SET title=$2, description=$3, type=$4, status=$5, folder_id=$6, tenant_id=$7, department=$8,
    updated_at=$9, updated_by=$10, version=version+1
WHERE id=$1 AND version=$11`
	return versionedUpdate(r.db.Pool.Exec(ctx, q, d.ID, d.Title, d.Description, d.Type, d.Status,
		d.FolderID, d.TenantID, d.Department, d.UpdatedAt, d.UpdatedBy, expectedVersion))
}

// Delete removes a document row.
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM documents WHERE id=$1`
	return deleteOne(r.db.Pool.Exec(ctx, q, id))
}

// List returns a page of documents.
func (r *DocumentRepo) List(ctx context.Context, page repository.Page) ([]*model.Document, error) {
	const q = `SELECT ` + documentCols + ` FROM documents ORDER BY created_at, id LIMIT $1 OFFSET $2`
	limit, offset := limitOffset(page)
	return getAll(ctx, r.db, scanDocument, q, limit, offset)
}

// ListByFolder returns documents filed in folderID; nil selects unfiled documents.
func (r *DocumentRepo) ListByFolder(ctx context.Context, folderID *uuid.UUID, page repository.Page) ([]*model.Document, error) {
	limit, offset := limitOffset(page)
	if folderID == nil {
		const q = `SELECT ` + documentCols + ` FROM documents WHERE folder_id IS NULL ORDER BY created_at, id LIMIT $1 OFFSET $2`
		return getAll(ctx, r.db, scanDocument, q, limit, offset)
	}
	const q = `SELECT ` + documentCols + ` FROM documents WHERE folder_id=$1 ORDER BY created_at, id LIMIT $2 OFFSET $3`
	return getAll(ctx, r.db, scanDocument, q, *folderID, limit, offset)
}
