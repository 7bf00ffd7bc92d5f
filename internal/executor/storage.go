// Package executor resolves the extension able to serve a request and delegates to it.
package executor

import (
	"context"
	"fmt"

	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
)

// Extensions is the part of the extension registry executors need.
type Extensions interface {
	Highest(id string) (any, bool)
}

// StorageExecutor routes content operations to the storage backend for a storage type.
type StorageExecutor struct {
	ext Extensions
}

// NewStorageExecutor constructs a StorageExecutor over ext.
func NewStorageExecutor(ext Extensions) *StorageExecutor {
	return &StorageExecutor{ext: ext}
}

// ResolveProvider returns the highest-priority storage extension if it supports
// storageType. Lower-ranked extensions are never consulted.
func (e *StorageExecutor) ResolveProvider(storageType string) (ecm.DocumentStorageExtension, error) {
	v, ok := e.ext.Highest(ecm.StoragePoint)
	if !ok {
		return nil, fmt.Errorf("storage type %q: %w", storageType, errs.ErrNoCompatibleProvider)
	}
	p, ok := v.(ecm.DocumentStorageExtension)
	if !ok || !p.SupportsStorageType(storageType) {
		return nil, fmt.Errorf("storage type %q: %w", storageType, errs.ErrNoCompatibleProvider)
	}
	return p, nil
}

// GenerateUploadURL returns a direct upload target for req.
func (e *StorageExecutor) GenerateUploadURL(ctx context.Context, req ecm.UploadRequest) (ecm.UploadTicket, error) {
	p, err := e.ResolveProvider(req.StorageType)
	if err != nil {
		return ecm.UploadTicket{}, err
	}
	return p.GenerateUploadURL(ctx, req)
}

// ConfirmUpload checks the uploaded content at loc.
func (e *StorageExecutor) ConfirmUpload(ctx context.Context, loc ecm.Location) (ecm.UploadConfirmation, error) {
	p, err := e.ResolveProvider(loc.StorageType)
	if err != nil {
		return ecm.UploadConfirmation{}, err
	}
	return p.ConfirmUpload(ctx, loc)
}

// GenerateDownloadURL returns a direct download link for loc.
func (e *StorageExecutor) GenerateDownloadURL(ctx context.Context, loc ecm.Location, fileName string) (ecm.DownloadLink, error) {
	p, err := e.ResolveProvider(loc.StorageType)
	if err != nil {
		return ecm.DownloadLink{}, err
	}
	return p.GenerateDownloadURL(ctx, loc, fileName)
}

// DeleteDocument removes the content at loc.
func (e *StorageExecutor) DeleteDocument(ctx context.Context, loc ecm.Location) error {
	p, err := e.ResolveProvider(loc.StorageType)
	if err != nil {
		return err
	}
	return p.DeleteDocument(ctx, loc)
}
