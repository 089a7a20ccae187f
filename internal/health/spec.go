package health

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/ports"
)

// Tier classifies how much a service's failure matters.
type Tier string

const (
	// TierCritical services flip the aggregate verdict to fail.
	TierCritical Tier = "critical"
	// TierSecondary services are reported but tolerated; the UI may lag
	// behind the API at startup.
	TierSecondary Tier = "secondary"
	// TierOptional services are probed for observability only.
	TierOptional Tier = "optional"
)

// rank orders tiers by probe priority.
func (t Tier) rank() int {
	switch t {
	case TierCritical:
		return 0
	case TierSecondary:
		return 1
	default:
		return 2
	}
}

// ServiceSpec declares one probe target. Immutable once loaded.
type ServiceSpec struct {
	Name       string        `yaml:"name"`
	Port       int           `yaml:"port"`
	Path       string        `yaml:"path,omitempty"` // optional HTTP path; empty means port-only
	Tier       Tier          `yaml:"tier"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ServiceStatus is the outcome of probing one service. Recomputed per
// check invocation, never persisted.
type ServiceStatus struct {
	Name      string `json:"name"`
	Tier      Tier   `json:"tier"`
	Reachable bool   `json:"reachable"`
	HTTPOk    *bool  `json:"http_ok,omitempty"` // nil when no path configured
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// Passed reports whether the probe fully succeeded.
func (s ServiceStatus) Passed() bool {
	if !s.Reachable {
		return false
	}
	if s.HTTPOk != nil {
		return *s.HTTPOk
	}
	return true
}

// DefaultSpecs builds the service table from configuration. The browser
// debug port comes from the allocation lease when available, falling back
// to the preferred port.
func DefaultSpecs(cfg *config.Config) []ServiceSpec {
	debugPort := cfg.Browser.DebugPort
	if lease, err := ports.ReadLease(cfg.Paths.LeasePath()); err == nil {
		debugPort = lease.Bound
	}

	h := cfg.Health
	spec := func(name string, port int, path string, tier Tier) ServiceSpec {
		return ServiceSpec{
			Name:       name,
			Port:       port,
			Path:       path,
			Tier:       tier,
			MaxRetries: h.MaxRetries,
			RetryDelay: h.RetryDelay,
			Timeout:    h.Timeout,
		}
	}

	return []ServiceSpec{
		spec("app-api", cfg.App.APIPort, "/healthcheck", TierCritical),
		spec("webui", cfg.App.UIPort, "/", TierSecondary),
		spec("novnc", cfg.Display.NoVNCPort, "", TierOptional),
		spec("x11vnc", cfg.Display.VNCPort, "", TierOptional),
		spec("browser-debug", debugPort, "", TierOptional),
	}
}

// LoadSpecs reads a service table override from a YAML file. Entries with
// zero retry knobs inherit the configured defaults.
func LoadSpecs(path string, cfg *config.Config) ([]ServiceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}
	var specs []ServiceSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}
	for i := range specs {
		if specs[i].MaxRetries == 0 {
			specs[i].MaxRetries = cfg.Health.MaxRetries
		}
		if specs[i].RetryDelay == 0 {
			specs[i].RetryDelay = cfg.Health.RetryDelay
		}
		if specs[i].Timeout == 0 {
			specs[i].Timeout = cfg.Health.Timeout
		}
		if specs[i].Tier == "" {
			specs[i].Tier = TierOptional
		}
	}
	return specs, nil
}
