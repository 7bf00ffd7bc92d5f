package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one HTTP e-signature vendor.
type ProviderConfig struct {
	Name      string        `yaml:"name"`
	TenantID  string        `yaml:"tenant"`
	BaseURL   string        `yaml:"baseUrl"`
	APIKey    string        `yaml:"apiKey"`
	Priority  int           `yaml:"priority"`
	Default   bool          `yaml:"default"`
	RateLimit float64       `yaml:"rateLimit"` // requests per second, 0 = unlimited
	RateBurst int           `yaml:"rateBurst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ProviderFile is the on-disk list of e-signature vendors.
type ProviderFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadProviderFile reads and validates the YAML provider file at path.
func LoadProviderFile(path string) (*ProviderFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var pf ProviderFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("decode providers file: %w", err)
	}
	if err := pf.validate(); err != nil {
		return nil, fmt.Errorf("providers file %s: %w", path, err)
	}
	return &pf, nil
}

func (pf *ProviderFile) validate() error {
	defaults := make(map[string]string)
	for i, p := range pf.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("provider[%d]: empty name", i)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q: empty baseUrl", p.Name)
		}
		if !p.Default {
			continue
		}
		if prev, ok := defaults[p.TenantID]; ok {
			return fmt.Errorf("tenant %q has two default providers: %q and %q", p.TenantID, prev, p.Name)
		}
		defaults[p.TenantID] = p.Name
	}
	return nil
}

// DefaultName returns the provider flagged default for the global (empty) tenant,
// falling back to the first flagged default of any tenant.
func (pf *ProviderFile) DefaultName() string {
	first := ""
	for _, p := range pf.Providers {
		if !p.Default {
			continue
		}
		if p.TenantID == "" {
			return p.Name
		}
		if first == "" {
			first = p.Name
		}
	}
	return first
}
