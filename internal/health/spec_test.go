package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/ports"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("BROWSER_SERVICE_API_KEY", "test-key")
	t.Setenv("STATE_DIR", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestDefaultSpecs(t *testing.T) {
	t.Run("without a lease the preferred debug port is used", func(t *testing.T) {
		cfg := testConfig(t)
		specs := DefaultSpecs(cfg)
		require.Len(t, specs, 5)

		byName := make(map[string]ServiceSpec)
		for _, s := range specs {
			byName[s.Name] = s
		}
		assert.Equal(t, TierCritical, byName["app-api"].Tier)
		assert.Equal(t, "/healthcheck", byName["app-api"].Path)
		assert.Equal(t, TierSecondary, byName["webui"].Tier)
		assert.Equal(t, cfg.Browser.DebugPort, byName["browser-debug"].Port)
	})

	t.Run("lease overrides the debug port", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, ports.WriteLease(cfg.Paths.LeasePath(), ports.Lease{
			Requested: 9222, Bound: 9224, UpperBound: 9300,
		}))

		specs := DefaultSpecs(cfg)
		for _, s := range specs {
			if s.Name == "browser-debug" {
				assert.Equal(t, 9224, s.Port)
				return
			}
		}
		t.Fatal("browser-debug spec missing")
	})
}

func TestLoadSpecs(t *testing.T) {
	cfg := testConfig(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSpecs(filepath.Join(t.TempDir(), "nope.yaml"), cfg)
		assert.Error(t, err)
	})

	t.Run("backfills retry knobs and tier", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "services.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
- name: app-api
  port: 7789
  path: /healthcheck
  tier: critical
- name: custom-probe
  port: 9000
`), 0o644))

		specs, err := LoadSpecs(path, cfg)
		require.NoError(t, err)
		require.Len(t, specs, 2)

		assert.Equal(t, TierCritical, specs[0].Tier)
		assert.Equal(t, cfg.Health.MaxRetries, specs[0].MaxRetries)
		assert.Equal(t, cfg.Health.RetryDelay, specs[0].RetryDelay)

		assert.Equal(t, TierOptional, specs[1].Tier, "tier defaults to optional")
		assert.Equal(t, cfg.Health.Timeout, specs[1].Timeout)
	})
}
