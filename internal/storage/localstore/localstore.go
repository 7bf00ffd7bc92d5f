// Package localstore implements the document storage extension on the local
// filesystem. Upload and download URLs point at Handler and carry an expiring
// blake2b MAC instead of credentials.
package localstore

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
)

// StorageType is the location type written for files kept here.
const StorageType = "LOCAL"

const defaultMaxUpload = 100 << 20

// Store is an ecm.DocumentStorageExtension rooted at a directory.
type Store struct {
	root      string
	baseURL   *url.URL
	key       []byte
	ttl       time.Duration
	maxUpload int64
	now       func() time.Time
	log       *zap.Logger
}

var _ ecm.DocumentStorageExtension = (*Store)(nil)

// New builds a store from cfg. Without a configured secret a random key is
// generated and links do not survive a restart.
func New(cfg config.LocalConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("local root: %w", errs.ErrConfiguration)
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("local base url %q: %w", cfg.BaseURL, errs.ErrConfiguration)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("local root: %w", err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("local root: %w", err)
	}

	key := []byte(cfg.Secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate link key: %w", err)
		}
		log.Warn("local storage secret not set, using ephemeral key")
	}
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Store{root: root, baseURL: base, key: key, ttl: ttl, maxUpload: maxUpload, now: time.Now, log: log}, nil
}

func (s *Store) Name() string { return "local" }

// StorageType is the location type written by this store.
func (s *Store) StorageType() string { return StorageType }

// SupportsStorageType accepts LOCAL and FILESYSTEM locations.
func (s *Store) SupportsStorageType(storageType string) bool {
	return strings.EqualFold(storageType, StorageType) || strings.EqualFold(storageType, "FILESYSTEM")
}

// GenerateUploadURL signs a PUT link whose body may not exceed the declared
// size, or the store maximum when no size is declared.
func (s *Store) GenerateUploadURL(_ context.Context, req ecm.UploadRequest) (ecm.UploadTicket, error) {
	key, err := cleanKey(req.Path)
	if err != nil {
		return ecm.UploadTicket{}, err
	}
	if req.Size > s.maxUpload {
		return ecm.UploadTicket{}, errs.Validation("size %d exceeds upload limit %d", req.Size, s.maxUpload)
	}
	limit := s.maxUpload
	if req.Size > 0 {
		limit = req.Size
	}
	exp := s.now().Add(s.ttl)
	t := ecm.UploadTicket{
		URL:       s.signedURL("PUT", key, "", limit, exp),
		Method:    "PUT",
		Location:  ecm.Location{StorageType: StorageType, Path: key},
		ExpiresAt: exp,
	}
	if req.MimeType != "" {
		t.Headers = map[string]string{"Content-Type": req.MimeType}
	}
	return t, nil
}

// ConfirmUpload reports size, type and a blake2b-256 ETag of the stored file.
func (s *Store) ConfirmUpload(_ context.Context, loc ecm.Location) (ecm.UploadConfirmation, error) {
	key, err := cleanKey(loc.Path)
	if err != nil {
		return ecm.UploadConfirmation{}, err
	}
	f, err := os.Open(s.file(key))
	if err != nil {
		return ecm.UploadConfirmation{}, notFound(err)
	}
	defer f.Close()

	h, _ := blake2b.New256(nil)
	n, err := io.Copy(h, f)
	if err != nil {
		return ecm.UploadConfirmation{}, fmt.Errorf("read %s: %w", key, err)
	}
	return ecm.UploadConfirmation{
		Location:    ecm.Location{StorageType: StorageType, Path: key},
		Size:        n,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ContentType: mime.TypeByExtension(path.Ext(key)),
	}, nil
}

func (s *Store) GenerateDownloadURL(_ context.Context, loc ecm.Location, fileName string) (ecm.DownloadLink, error) {
	key, err := cleanKey(loc.Path)
	if err != nil {
		return ecm.DownloadLink{}, err
	}
	if _, err := os.Stat(s.file(key)); err != nil {
		return ecm.DownloadLink{}, notFound(err)
	}
	exp := s.now().Add(s.ttl)
	return ecm.DownloadLink{URL: s.signedURL("GET", key, fileName, 0, exp), ExpiresAt: exp}, nil
}

func (s *Store) DeleteDocument(_ context.Context, loc ecm.Location) error {
	key, err := cleanKey(loc.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(s.file(key)); err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Store) file(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// signedURL builds a link for method on key. limit > 0 bounds the request body.
func (s *Store) signedURL(method, key, name string, limit int64, exp time.Time) string {
	u := *s.baseURL
	u.Path = s.baseURL.Path + "/" + key
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp.Unix(), 10))
	if name != "" {
		q.Set("name", name)
	}
	if limit > 0 {
		q.Set("max", strconv.FormatInt(limit, 10))
	}
	q.Set("sig", s.sign(method, key, name, limit, exp.Unix()))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Store) sign(method, key, name string, limit, exp int64) string {
	h, _ := blake2b.New256(s.key)
	fmt.Fprintf(h, "%s\n%s\n%s\n%d\n%d", method, key, name, limit, exp)
	return hex.EncodeToString(h.Sum(nil))
}

// signedLink is the signed part of a request URL.
type signedLink struct {
	name    string
	limit   int64
	expires string
	sig     string
}

// verify checks a link signature and its expiry.
func (s *Store) verify(method, key string, l signedLink) bool {
	exp, err := strconv.ParseInt(l.expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return false
	}
	want := s.sign(method, key, l.name, l.limit, exp)
	return subtle.ConstantTimeCompare([]byte(want), []byte(l.sig)) == 1
}

// cleanKey normalizes an object key; keys never escape the root.
func cleanKey(p string) (string, error) {
	key := strings.TrimPrefix(path.Clean("/"+p), "/")
	if key == "" || key == "." {
		return "", errs.Validation("empty object key")
	}
	return key, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", errs.ErrNotFound, err)
	}
	return err
}
