package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
)

var permissionColumns = []string{"id", "document_id", "principal", "principal_type", "permission", "granted",
	"expires_at", "created_at", "updated_at", "created_by", "updated_by", "version"}

func samplePermission(doc uuid.UUID) *model.DocumentPermission {
	ts := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)
	exp := ts.Add(48 * time.Hour)
	return &model.DocumentPermission{
		ID:            uuid.Must(uuid.NewV4()),
		DocumentID:    doc,
		Principal:     "legal-team",
		PrincipalType: "GROUP",
		Permission:    model.PermissionSign,
		Granted:       true,
		ExpiresAt:     &exp,
		Audit:         model.Audit{CreatedAt: ts, UpdatedAt: ts, CreatedBy: "carol", UpdatedBy: "carol", Version: 1},
	}
}

func TestPermissionRepo_Insert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepo(db)
	p := samplePermission(uuid.Must(uuid.NewV4()))

	mock.ExpectExec(`INSERT INTO document_permissions`).
		WithArgs(p.ID, p.DocumentID, p.Principal, p.PrincipalType, p.Permission, p.Granted, p.ExpiresAt,
			p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy, p.Version).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Insert(context.Background(), p))

	mock.ExpectExec(`INSERT INTO document_permissions`).
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Insert(context.Background(), p), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_ListByDocument(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepo(db)
	doc := uuid.Must(uuid.NewV4())
	allow := samplePermission(doc)
	deny := samplePermission(doc)
	deny.Granted = false
	deny.ExpiresAt = nil

	rows := pgxmock.NewRows(permissionColumns)
	for _, p := range []*model.DocumentPermission{allow, deny} {
		rows.AddRow(p.ID, p.DocumentID, p.Principal, p.PrincipalType, p.Permission, p.Granted, p.ExpiresAt,
			p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy, p.Version)
	}
	mock.ExpectQuery(`FROM document_permissions WHERE document_id=\$1`).
		WithArgs(doc).
		WillReturnRows(rows)

	out, err := r.ListByDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].Granted)
	require.Equal(t, allow.ExpiresAt, out[0].ExpiresAt)
	require.False(t, out[1].Granted)
	require.Nil(t, out[1].ExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepo(db)
	p := samplePermission(uuid.Must(uuid.NewV4()))

	mock.ExpectExec(`UPDATE document_permissions SET .* WHERE id=\$1 AND version=\$9`).
		WithArgs(p.ID, p.Principal, p.PrincipalType, p.Permission, p.Granted, p.ExpiresAt,
			p.UpdatedAt, p.UpdatedBy, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Update(context.Background(), p, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}
