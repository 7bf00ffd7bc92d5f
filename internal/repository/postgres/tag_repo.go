package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// TagRepo implements TagRepository using PostgreSQL.
type TagRepo struct{ db *DB }

// NewTagRepo constructs a tag repository.
func NewTagRepo(db *DB) *TagRepo { return &TagRepo{db: db} }

const tagCols = `id, name, color, tenant_id, created_at, updated_at, created_by, updated_by, version`

func scanTag(row pgx.Row) (*model.Tag, error) {
	var t model.Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Color, &t.TenantID,
		&t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &t.UpdatedBy, &t.Version); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TagRepo) Get(ctx context.Context, id uuid.UUID) (*model.Tag, error) {
	const q = `SELECT ` + tagCols + ` FROM tags WHERE id=$1`
	return getOne(ctx, r.db, scanTag, q, id)
}

func (r *TagRepo) Insert(ctx context.Context, t *model.Tag) error {
	const q = `INSERT INTO tags (` + tagCols + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.Name, t.Color, t.TenantID,
		t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy, t.Version)
	return insertErr(err)
}

func (r *TagRepo) Update(ctx context.Context, t *model.Tag, expectedVersion int64) error {
	const q = `
UPDATE tags SET name=$2, color=$3, tenant_id=$4, updated_at=$5, updated_by=$6, version=version+1
WHERE id=$1 AND version=$7`
	tag, err := r.db.Pool.Exec(ctx, q, t.ID, t.Name, t.Color, t.TenantID, t.UpdatedAt, t.UpdatedBy, expectedVersion)
	return versionedUpdate(tag, insertErr(err))
}

func (r *TagRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM tags WHERE id=$1`
	return deleteOne(r.db.Pool.Exec(ctx, q, id))
}

func (r *TagRepo) List(ctx context.Context, page repository.Page) ([]*model.Tag, error) {
	const q = `SELECT ` + tagCols + ` FROM tags ORDER BY name, id LIMIT $1 OFFSET $2`
	limit, offset := limitOffset(page)
	return getAll(ctx, r.db, scanTag, q, limit, offset)
}

// Assign links a tag to a document; assigning twice is a no-op.
func (r *TagRepo) Assign(ctx context.Context, dt model.DocumentTag) error {
	const q = `
INSERT INTO document_tags (document_id, tag_id, tenant_id, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (document_id, tag_id) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, dt.DocumentID, dt.TagID, dt.TenantID, dt.CreatedAt)
	return err
}

// Unassign removes a tag from a document.
func (r *TagRepo) Unassign(ctx context.Context, documentID, tagID uuid.UUID) error {
	const q = `DELETE FROM document_tags WHERE document_id=$1 AND tag_id=$2`
	return deleteOne(r.db.Pool.Exec(ctx, q, documentID, tagID))
}

// ListForDocument returns tags assigned to a document.
func (r *TagRepo) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Tag, error) {
	const q = `
SELECT t.id, t.name, t.color, t.tenant_id, t.created_at, t.updated_at, t.created_by, t.updated_by, t.version
FROM tags t JOIN document_tags dt ON dt.tag_id = t.id
WHERE dt.document_id=$1
ORDER BY t.name`
	return getAll(ctx, r.db, scanTag, q, documentID)
}
