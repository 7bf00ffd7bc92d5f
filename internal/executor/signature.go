package executor

import (
	"context"
	"fmt"

	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
)

// SignatureExecutor routes signature operations to the e-signature provider for a request.
type SignatureExecutor struct {
	ext Extensions
}

// NewSignatureExecutor constructs a SignatureExecutor over ext.
func NewSignatureExecutor(ext Extensions) *SignatureExecutor {
	return &SignatureExecutor{ext: ext}
}

// ResolveProvider returns the highest-priority signature extension if it supports req.
func (e *SignatureExecutor) ResolveProvider(req ecm.SignatureRequest) (ecm.SignatureProviderExtension, error) {
	v, ok := e.ext.Highest(ecm.SignaturePoint)
	if !ok {
		return nil, fmt.Errorf("signature request %s: %w", req.RequestID, errs.ErrNoCompatibleProvider)
	}
	p, ok := v.(ecm.SignatureProviderExtension)
	if !ok || !p.SupportsRequest(req) {
		return nil, fmt.Errorf("signature request %s: %w", req.RequestID, errs.ErrNoCompatibleProvider)
	}
	return p, nil
}

// Send dispatches req to its provider.
func (e *SignatureExecutor) Send(ctx context.Context, req ecm.SignatureRequest) (ecm.SendResult, error) {
	p, err := e.ResolveProvider(req)
	if err != nil {
		return ecm.SendResult{}, err
	}
	return p.Send(ctx, req)
}

// CheckStatus asks the provider for the current state of req.
func (e *SignatureExecutor) CheckStatus(ctx context.Context, req ecm.SignatureRequest) (ecm.StatusResult, error) {
	p, err := e.ResolveProvider(req)
	if err != nil {
		return ecm.StatusResult{}, err
	}
	return p.CheckStatus(ctx, req)
}

// Verify asks the provider to verify the signatures collected for req.
func (e *SignatureExecutor) Verify(ctx context.Context, req ecm.SignatureRequest) (ecm.VerificationResult, error) {
	p, err := e.ResolveProvider(req)
	if err != nil {
		return ecm.VerificationResult{}, err
	}
	return p.Verify(ctx, req)
}

// Cancel withdraws req at the provider.
func (e *SignatureExecutor) Cancel(ctx context.Context, req ecm.SignatureRequest) error {
	p, err := e.ResolveProvider(req)
	if err != nil {
		return err
	}
	return p.Cancel(ctx, req)
}

// FetchSigners lists per-signer progress for req.
func (e *SignatureExecutor) FetchSigners(ctx context.Context, req ecm.SignatureRequest) ([]ecm.SignerStatus, error) {
	p, err := e.ResolveProvider(req)
	if err != nil {
		return nil, err
	}
	return p.FetchSigners(ctx, req)
}
