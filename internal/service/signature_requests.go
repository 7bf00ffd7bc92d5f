package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
	"github.com/and161185/ecm-core/internal/repository"
)

// SignatureExecutor is the e-signature routing used by SignatureRequestService.
type SignatureExecutor interface {
	Send(ctx context.Context, req ecm.SignatureRequest) (ecm.SendResult, error)
	CheckStatus(ctx context.Context, req ecm.SignatureRequest) (ecm.StatusResult, error)
	Cancel(ctx context.Context, req ecm.SignatureRequest) error
	Verify(ctx context.Context, req ecm.SignatureRequest) (ecm.VerificationResult, error)
	FetchSigners(ctx context.Context, req ecm.SignatureRequest) ([]ecm.SignerStatus, error)
}

// SignatureMapper turns stored records into provider-facing requests.
type SignatureMapper interface {
	ForRequest(req model.SignatureRequest, sig model.DocumentSignature) ecm.SignatureRequest
}

// SignatureRequestService drives signature requests through notification, reminders and expiry.
type SignatureRequestService interface {
	// Create stores a new request linked to a document and signer record.
	Create(ctx context.Context, r *model.SignatureRequest) (*model.SignatureRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error)
	// SendNotification sends the request through its provider. Each call sends again.
	SendNotification(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error)
	// SendReminder re-sends the request and counts the reminder. Each call sends again.
	SendReminder(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error)
	// ProcessExpiredRequests moves open requests past their expiration date to EXPIRED.
	ProcessExpiredRequests(ctx context.Context) ([]*model.SignatureRequest, error)
	GetByRequestStatus(ctx context.Context, status model.SignatureStatus) ([]*model.SignatureRequest, error)
	GetByDocumentSignatureID(ctx context.Context, signatureID uuid.UUID) ([]*model.SignatureRequest, error)
	// UpdateStatus sets status without checking the transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SignatureStatus) (*model.SignatureRequest, error)
	// CheckProviderStatus refreshes the status from the provider.
	CheckProviderStatus(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error)
	// Cancel withdraws the request at the provider and marks it CANCELED.
	Cancel(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error)
	// Verify asks the provider to verify the request's signature and stores the verdict.
	Verify(ctx context.Context, id uuid.UUID) (*model.SignatureVerification, error)
	// ListVerifications returns stored verdicts of a request, newest first.
	ListVerifications(ctx context.Context, id uuid.UUID) ([]*model.SignatureVerification, error)
	// SyncSigner copies the provider's progress for the request's signer onto
	// the signer record.
	SyncSigner(ctx context.Context, id uuid.UUID) (*model.DocumentSignature, error)
}

type SignatureRequestServiceImpl struct {
	crud    *CRUD[*model.SignatureRequest]
	repo    repository.SignatureRequestRepository
	sigs    repository.DocumentSignatureRepository
	signers *CRUD[*model.DocumentSignature]
	checks  repository.SignatureVerificationRepository
	exec    SignatureExecutor
	mapper  SignatureMapper
	now     func() time.Time
	log     *zap.Logger

	defaultProvider string
}

// NewSignatureRequestService constructs SignatureRequestService. A nil clock means
// time.Now; a nil logger discards output.
func NewSignatureRequestService(
	repo repository.SignatureRequestRepository,
	sigs repository.DocumentSignatureRepository,
	checks repository.SignatureVerificationRepository,
	exec SignatureExecutor,
	mapper SignatureMapper,
	now func() time.Time,
	log *zap.Logger,
) *SignatureRequestServiceImpl {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SignatureRequestServiceImpl{
		crud:    NewCRUD[*model.SignatureRequest](repo, now, nil),
		repo:    repo,
		sigs:    sigs,
		signers: NewCRUD[*model.DocumentSignature](sigs, now, nil),
		checks:  checks,
		exec:    exec,
		mapper:  mapper,
		now:     now,
		log:     log,
	}
}

// WithDefaultProvider sets the provider recorded on requests whose signer
// record names none.
func (s *SignatureRequestServiceImpl) WithDefaultProvider(name string) *SignatureRequestServiceImpl {
	s.defaultProvider = name
	return s
}

// Create validates the linkage and stores r. Provider defaults to the signer
// record's provider, then to the default provider; status defaults to PENDING. Reference codes are not checked for uniqueness.
func (s *SignatureRequestServiceImpl) Create(ctx context.Context, r *model.SignatureRequest) (*model.SignatureRequest, error) {
	if r.DocumentID == uuid.Nil || r.DocumentSignatureID == uuid.Nil {
		return nil, errs.Validation("empty documentID/documentSignatureID")
	}
	if r.Status != "" && !r.Status.Valid() {
		return nil, errs.Validation("unknown signature status %q", r.Status)
	}
	sig, err := s.sigs.Get(ctx, r.DocumentSignatureID)
	if err != nil {
		return nil, err
	}
	if sig.DocumentID != r.DocumentID {
		return nil, errs.Validation("signature %s does not belong to document %s", sig.ID, r.DocumentID)
	}

	if r.Status == "" {
		r.Status = model.SignaturePending
	}
	if r.Provider == "" {
		r.Provider = sig.Provider
	}
	if r.Provider == "" {
		r.Provider = s.defaultProvider
	}
	if r.ExpirationDate == nil && sig.ExpiresAt != nil {
		exp := *sig.ExpiresAt
		r.ExpirationDate = &exp
	}
	if r.ReferenceCode == "" {
		code, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("generate reference: %w", err)
		}
		r.ReferenceCode = "SR-" + strings.ToUpper(code.String()[:8])
	}
	return s.crud.Create(ctx, r)
}

func (s *SignatureRequestServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	return s.crud.Get(ctx, id)
}

// load fetches a request with its signer record and the mapped provider request.
func (s *SignatureRequestServiceImpl) load(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, ecm.SignatureRequest, error) {
	r, err := s.crud.Get(ctx, id)
	if err != nil {
		return nil, ecm.SignatureRequest{}, err
	}
	sig, err := s.sigs.Get(ctx, r.DocumentSignatureID)
	if err != nil {
		return nil, ecm.SignatureRequest{}, fmt.Errorf("signature %s: %w", r.DocumentSignatureID, err)
	}
	return r, s.mapper.ForRequest(*r, *sig), nil
}

func (s *SignatureRequestServiceImpl) send(ctx context.Context, id uuid.UUID, record func(r *model.SignatureRequest, at time.Time)) (*model.SignatureRequest, error) {
	r, req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if !res.SentAt.IsZero() {
		at = res.SentAt.UTC()
	}
	record(r, at)
	if res.ProviderRequestID != "" {
		r.ProviderRequestID = res.ProviderRequestID
	}
	switch {
	case res.Status.Valid():
		r.Status = res.Status
	case r.Status == model.SignaturePending:
		r.Status = model.SignatureInProgress
	}
	return s.crud.Update(ctx, r)
}

func (s *SignatureRequestServiceImpl) SendNotification(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	return s.send(ctx, id, func(r *model.SignatureRequest, at time.Time) {
		r.NotificationSent = true
		r.NotificationSentAt = &at
	})
}

func (s *SignatureRequestServiceImpl) SendReminder(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	return s.send(ctx, id, func(r *model.SignatureRequest, at time.Time) {
		r.ReminderCount++
		r.LastReminderAt = &at
	})
}

// ProcessExpiredRequests saves each expired request on its own. The first failed
// save stops the batch; requests saved before it stay EXPIRED.
func (s *SignatureRequestServiceImpl) ProcessExpiredRequests(ctx context.Context) ([]*model.SignatureRequest, error) {
	now := s.now()
	candidates, err := s.repo.ListExpirable(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]*model.SignatureRequest, 0, len(candidates))
	for _, r := range candidates {
		if !r.Expired(now) {
			continue
		}
		r.Status = model.SignatureExpired
		saved, err := s.crud.Update(ctx, r)
		if err != nil {
			s.log.Warn("expire signature request failed",
				zap.String("id", r.ID.String()), zap.Int("expired", len(out)), zap.Error(err))
			return nil, fmt.Errorf("expire %s: %w", r.ID, err)
		}
		out = append(out, saved)
	}
	if len(out) > 0 {
		s.log.Info("signature requests expired", zap.Int("count", len(out)))
	}
	return out, nil
}

func (s *SignatureRequestServiceImpl) GetByRequestStatus(ctx context.Context, status model.SignatureStatus) ([]*model.SignatureRequest, error) {
	if !status.Valid() {
		return nil, errs.Validation("unknown signature status %q", status)
	}
	return s.repo.ListByStatus(ctx, status)
}

func (s *SignatureRequestServiceImpl) GetByDocumentSignatureID(ctx context.Context, signatureID uuid.UUID) ([]*model.SignatureRequest, error) {
	if signatureID == uuid.Nil {
		return nil, errs.Validation("empty documentSignatureID")
	}
	return s.repo.ListByDocumentSignatureID(ctx, signatureID)
}

func (s *SignatureRequestServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SignatureStatus) (*model.SignatureRequest, error) {
	if !status.Valid() {
		return nil, errs.Validation("unknown signature status %q", status)
	}
	r, err := s.crud.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Status = status
	return s.crud.Update(ctx, r)
}

func (s *SignatureRequestServiceImpl) CheckProviderStatus(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	r, req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.CheckStatus(ctx, req)
	if err != nil {
		return nil, err
	}
	changed := false
	if res.Status.Valid() && res.Status != r.Status {
		r.Status, changed = res.Status, true
	}
	if res.ProviderRequestID != "" && res.ProviderRequestID != r.ProviderRequestID {
		r.ProviderRequestID, changed = res.ProviderRequestID, true
	}
	if !changed {
		return r, nil
	}
	return s.crud.Update(ctx, r)
}

func (s *SignatureRequestServiceImpl) Cancel(ctx context.Context, id uuid.UUID) (*model.SignatureRequest, error) {
	r, req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.exec.Cancel(ctx, req); err != nil {
		return nil, err
	}
	r.Status = model.SignatureCanceled
	return s.crud.Update(ctx, r)
}

// Verify records the provider verdict. A verdict missing its timestamp is
// stamped with the service clock.
func (s *SignatureRequestServiceImpl) Verify(ctx context.Context, id uuid.UUID) (*model.SignatureVerification, error) {
	r, req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Verify(ctx, req)
	if err != nil {
		return nil, err
	}
	vid, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	v := &model.SignatureVerification{
		ID:                 vid,
		SignatureRequestID: r.ID,
		SignatureID:        r.DocumentSignatureID,
		Valid:              res.Valid,
		VerifiedAt:         res.VerifiedAt.UTC(),
		Details:            res.Details,
	}
	if res.VerifiedAt.IsZero() {
		v.VerifiedAt = s.now().UTC()
	}
	if p := res.Proof; p != nil {
		v.Proof = &model.SignatureProof{
			SignatureID: r.DocumentSignatureID,
			ProofURL:    p.URL,
			Hash:        p.Hash,
			IssuedAt:    p.IssuedAt.UTC(),
		}
	}
	if err := s.checks.Insert(ctx, v); err != nil {
		return nil, fmt.Errorf("store verification: %w", err)
	}
	if !v.Valid {
		s.log.Warn("signature verification failed",
			zap.String("request", r.ID.String()), zap.String("details", v.Details))
	}
	return v, nil
}

func (s *SignatureRequestServiceImpl) ListVerifications(ctx context.Context, id uuid.UUID) ([]*model.SignatureVerification, error) {
	if id == uuid.Nil {
		return nil, errs.Validation("empty id")
	}
	return s.checks.ListByRequest(ctx, id)
}

// SyncSigner matches the provider's signer list by email, ignoring case. The
// record is saved only when its status or signing time changed; a signer the
// provider does not list is errs.ErrNotFound.
func (s *SignatureRequestServiceImpl) SyncSigner(ctx context.Context, id uuid.UUID) (*model.DocumentSignature, error) {
	r, req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sig, err := s.sigs.Get(ctx, r.DocumentSignatureID)
	if err != nil {
		return nil, err
	}
	list, err := s.exec.FetchSigners(ctx, req)
	if err != nil {
		return nil, err
	}

	var st *ecm.SignerStatus
	for i := range list {
		if strings.EqualFold(strings.TrimSpace(list[i].Email), strings.TrimSpace(sig.SignerEmail)) {
			st = &list[i]
			break
		}
	}
	if st == nil {
		return nil, fmt.Errorf("signer %s at provider: %w", sig.SignerEmail, errs.ErrNotFound)
	}

	changed := false
	if st.Status.Valid() && st.Status != sig.Status {
		sig.Status, changed = st.Status, true
	}
	if st.SignedAt != nil && (sig.SignedAt == nil || !sig.SignedAt.Equal(*st.SignedAt)) {
		at := st.SignedAt.UTC()
		sig.SignedAt, changed = &at, true
	}
	if !changed {
		return sig, nil
	}
	return s.signers.Update(ctx, sig)
}
