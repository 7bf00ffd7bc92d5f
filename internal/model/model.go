// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Audit carries bookkeeping columns stamped by the service layer, never by callers.
type Audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
	Version   int64 // optimistic lock, starts at 1
}

// AuditInfo exposes the audit block for generic services.
func (a *Audit) AuditInfo() *Audit { return a }

// Entity is implemented by pointer types of persisted records with a UUID key.
type Entity interface {
	EntityID() uuid.UUID
	SetEntityID(id uuid.UUID)
	AuditInfo() *Audit
}

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	DocumentDraft    DocumentStatus = "DRAFT"
	DocumentActive   DocumentStatus = "ACTIVE"
	DocumentArchived DocumentStatus = "ARCHIVED"
	DocumentDeleted  DocumentStatus = "DELETED"
)

// Document is the central content record. Versions, permissions, tags and
// signatures refer to it by DocumentID.
type Document struct {
	ID          uuid.UUID
	Title       string
	Description string
	Type        string
	Status      DocumentStatus
	FolderID    *uuid.UUID
	TenantID    string
	Department  string
	Audit
}

func (d *Document) EntityID() uuid.UUID      { return d.ID }
func (d *Document) SetEntityID(id uuid.UUID) { d.ID = id }

// DocumentVersion is an immutable content snapshot; a new upload supersedes it.
type DocumentVersion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	VersionNumber int
	FileName      string
	FileExtension string
	MimeType      string
	FileSize      int64
	StorageType   string
	StoragePath   string
	Encrypted     bool
	ChangeSummary string
	Major         bool
	CreatedAt     time.Time
	CreatedBy     string
}

// Folder is a node of the folder tree. ParentID nil means root.
type Folder struct {
	ID            uuid.UUID
	Name          string
	ParentID      *uuid.UUID
	TenantID      string
	SecurityLevel int
	SystemFolder  bool
	Audit
}

func (f *Folder) EntityID() uuid.UUID      { return f.ID }
func (f *Folder) SetEntityID(id uuid.UUID) { f.ID = id }

// Tag is a reusable label.
type Tag struct {
	ID       uuid.UUID
	Name     string
	Color    string
	TenantID string
	Audit
}

func (t *Tag) EntityID() uuid.UUID      { return t.ID }
func (t *Tag) SetEntityID(id uuid.UUID) { t.ID = id }

// DocumentTag joins documents and tags within a tenant.
type DocumentTag struct {
	DocumentID uuid.UUID
	TagID      uuid.UUID
	TenantID   string
	CreatedAt  time.Time
}

// PermissionType names a grantable action on a document.
type PermissionType string

const (
	PermissionRead   PermissionType = "READ"
	PermissionWrite  PermissionType = "WRITE"
	PermissionDelete PermissionType = "DELETE"
	PermissionShare  PermissionType = "SHARE"
	PermissionSign   PermissionType = "SIGN"
	PermissionAdmin  PermissionType = "ADMIN"
)

// DocumentPermission grants (Granted=true) or denies a permission to a principal.
// Several rows may apply to the same principal; no evaluation policy is defined here.
type DocumentPermission struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	Principal     string
	PrincipalType string // USER, GROUP, ROLE
	Permission    PermissionType
	Granted       bool
	ExpiresAt     *time.Time
	Audit
}

func (p *DocumentPermission) EntityID() uuid.UUID      { return p.ID }
func (p *DocumentPermission) SetEntityID(id uuid.UUID) { p.ID = id }
