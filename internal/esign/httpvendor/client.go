// Package httpvendor implements the e-signature provider extension against a
// vendor REST API described by a providers file entry.
package httpvendor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/time/rate"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/model"
)

const defaultTimeout = 30 * time.Second

// Client is a rate-limited ecm.SignatureProviderExtension for one vendor.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

var _ ecm.SignatureProviderExtension = (*Client)(nil)

// New builds a client from a provider entry. RateLimit 0 means unlimited.
func New(cfg config.ProviderConfig, transport http.RoundTripper) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name: %w", errs.ErrConfiguration)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("provider %s base url: %w", cfg.Name, errs.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit, burst := rate.Inf, cfg.RateBurst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

func (c *Client) Name() string { return c.name }

// SupportsRequest accepts requests addressed to this vendor or to no vendor in particular.
func (c *Client) SupportsRequest(req ecm.SignatureRequest) bool {
	return req.Provider == "" || strings.EqualFold(req.Provider, c.name)
}

type signerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	Order    int    `json:"order,omitempty"`
	Required bool   `json:"required"`
}

type sendBody struct {
	Reference  uuid.UUID    `json:"reference"`
	DocumentID uuid.UUID    `json:"documentId"`
	Message    string       `json:"message,omitempty"`
	Language   string       `json:"language,omitempty"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	Signers    []signerBody `json:"signers"`
}

type envelope struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	SentAt    time.Time `json:"sentAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Send creates an envelope at the vendor. Each call creates a new one.
func (c *Client) Send(ctx context.Context, req ecm.SignatureRequest) (ecm.SendResult, error) {
	body := sendBody{
		Reference:  req.RequestID,
		DocumentID: req.DocumentID,
		Message:    req.Message,
		Language:   req.Language,
		ExpiresAt:  req.ExpiresAt.UTC(),
	}
	for _, s := range req.Signers {
		body.Signers = append(body.Signers, signerBody{Name: s.Name, Email: s.Email, Role: s.Role, Order: s.Order, Required: s.Required})
	}
	var out envelope
	if err := c.do(ctx, http.MethodPost, "/signature-requests", body, &out); err != nil {
		return ecm.SendResult{}, err
	}
	return ecm.SendResult{ProviderRequestID: out.ID, Status: mapStatus(out.Status), SentAt: out.SentAt}, nil
}

func (c *Client) CheckStatus(ctx context.Context, req ecm.SignatureRequest) (ecm.StatusResult, error) {
	p, err := envelopePath(req)
	if err != nil {
		return ecm.StatusResult{}, err
	}
	var out envelope
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return ecm.StatusResult{}, err
	}
	id := out.ID
	if id == "" {
		id = req.ProviderRequestID
	}
	return ecm.StatusResult{ProviderRequestID: id, Status: mapStatus(out.Status), UpdatedAt: out.UpdatedAt}, nil
}

func (c *Client) Verify(ctx context.Context, req ecm.SignatureRequest) (ecm.VerificationResult, error) {
	p, err := envelopePath(req)
	if err != nil {
		return ecm.VerificationResult{}, err
	}
	var out struct {
		Valid      bool      `json:"valid"`
		VerifiedAt time.Time `json:"verifiedAt"`
		Details    string    `json:"details"`
		Proof      *struct {
			URL      string    `json:"url"`
			Hash     string    `json:"hash"`
			IssuedAt time.Time `json:"issuedAt"`
		} `json:"proof"`
	}
	if err := c.do(ctx, http.MethodGet, p+"/verification", nil, &out); err != nil {
		return ecm.VerificationResult{}, err
	}
	res := ecm.VerificationResult{Valid: out.Valid, VerifiedAt: out.VerifiedAt, Details: out.Details}
	if out.Proof != nil {
		res.Proof = &ecm.Proof{URL: out.Proof.URL, Hash: out.Proof.Hash, IssuedAt: out.Proof.IssuedAt}
	}
	return res, nil
}

func (c *Client) Cancel(ctx context.Context, req ecm.SignatureRequest) error {
	p, err := envelopePath(req)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, p+"/cancel", nil, nil)
}

func (c *Client) FetchSigners(ctx context.Context, req ecm.SignatureRequest) ([]ecm.SignerStatus, error) {
	p, err := envelopePath(req)
	if err != nil {
		return nil, err
	}
	var out []struct {
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Status   string     `json:"status"`
		SignedAt *time.Time `json:"signedAt"`
	}
	if err := c.do(ctx, http.MethodGet, p+"/signers", nil, &out); err != nil {
		return nil, err
	}
	signers := make([]ecm.SignerStatus, 0, len(out))
	for _, s := range out {
		signers = append(signers, ecm.SignerStatus{Name: s.Name, Email: s.Email, Status: mapStatus(s.Status), SignedAt: s.SignedAt})
	}
	return signers, nil
}

func envelopePath(req ecm.SignatureRequest) (string, error) {
	if req.ProviderRequestID == "" {
		return "", errs.Validation("request %s has not been sent", req.RequestID)
	}
	return "/signature-requests/" + url.PathEscape(req.ProviderRequestID), nil
}

// do sends one request; there are no retries. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", c.name, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s encode: %w", c.name, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.name, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%s %s %s: status %d: %s", c.name, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", errs.ErrNotFound, err)
		}
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", c.name, err)
	}
	return nil
}

// mapStatus folds vendor vocabularies onto SignatureStatus. Unknown values map to "".
func mapStatus(s string) model.SignatureStatus {
	switch v := model.SignatureStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))); v {
	case "SENT", "DELIVERED", "OPENED", "VIEWED":
		return model.SignatureInProgress
	case "COMPLETED", "COMPLETE":
		return model.SignatureSigned
	case "DECLINED":
		return model.SignatureRejected
	case "VOIDED", "CANCELLED":
		return model.SignatureCanceled
	case "ERROR":
		return model.SignatureFailed
	default:
		if v.Valid() {
			return v
		}
		return ""
	}
}
