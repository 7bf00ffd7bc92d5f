// Package provider implements name-keyed registries of storage and e-signature providers.
package provider

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/and161185/ecm-core/internal/errs"
)

// Named is satisfied by every registrable provider.
type Named interface {
	Name() string
}

// Registry maps provider names to implementations. It is built once at startup
// and only read afterwards, so it needs no locking.
type Registry[P Named] struct {
	kind        string
	byKey       map[string]P
	names       []string
	defaultName string
}

// New builds a registry of the given kind ("storage", "signature") from providers.
// defaultName may be empty; Default then fails with errs.ErrConfiguration.
func New[P Named](kind string, providers []P, defaultName string, log *zap.Logger) (*Registry[P], error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry[P]{
		kind:        kind,
		byKey:       make(map[string]P, len(providers)),
		names:       make([]string, 0, len(providers)),
		defaultName: strings.TrimSpace(defaultName),
	}
	for _, p := range providers {
		name := strings.TrimSpace(p.Name())
		if name == "" {
			return nil, fmt.Errorf("%s provider with empty name", kind)
		}
		k := key(name)
		if _, dup := r.byKey[k]; dup {
			return nil, fmt.Errorf("%s provider %q: %w", kind, name, errs.ErrAlreadyExists)
		}
		r.byKey[k] = p
		r.names = append(r.names, name)
		log.Info("provider registered", zap.String("kind", kind), zap.String("name", name))
	}
	sort.Strings(r.names)
	return r, nil
}

// key folds case so that "S3", "s3" and "ſ3" address the same provider.
func key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Get returns the provider registered under name, ignoring case.
func (r *Registry[P]) Get(name string) (P, error) {
	p, ok := r.byKey[key(name)]
	if !ok {
		var zero P
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, errs.ErrProviderNotFound)
	}
	return p, nil
}

// Default returns the configured default provider.
func (r *Registry[P]) Default() (P, error) {
	if r.defaultName == "" {
		var zero P
		return zero, fmt.Errorf("default %s provider not set: %w", r.kind, errs.ErrConfiguration)
	}
	return r.Get(r.defaultName)
}

// DefaultName returns the configured default name, possibly empty.
func (r *Registry[P]) DefaultName() string { return r.defaultName }

// Has reports whether name is registered.
func (r *Registry[P]) Has(name string) bool {
	_, ok := r.byKey[key(name)]
	return ok
}

// Names lists registered provider names in sorted order.
func (r *Registry[P]) Names() []string {
	return append([]string(nil), r.names...)
}
