package health

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserbox/browserbox/internal/infrastructure/logging"
)

func quickSpec(name string, port int, path string, tier Tier) ServiceSpec {
	return ServiceSpec{
		Name:       name,
		Port:       port,
		Path:       path,
		Tier:       tier,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		Timeout:    200 * time.Millisecond,
	}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("healthy when critical passes and optional fails", func(t *testing.T) {
		apiPort := serve(t, okHandler)
		agg := NewAggregator([]ServiceSpec{
			quickSpec("app-api", apiPort, "/healthcheck", TierCritical),
			quickSpec("browser-debug", deadPort(t), "", TierOptional),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.True(t, verdict.OK)
		require.Len(t, verdict.Statuses, 2)
		assert.True(t, verdict.Statuses[0].Passed())
		assert.False(t, verdict.Statuses[1].Passed())
	})

	t.Run("secondary failure is tolerated", func(t *testing.T) {
		apiPort := serve(t, okHandler)
		agg := NewAggregator([]ServiceSpec{
			quickSpec("app-api", apiPort, "/healthcheck", TierCritical),
			quickSpec("webui", deadPort(t), "/", TierSecondary),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.True(t, verdict.OK)
	})

	t.Run("critical failure short-circuits", func(t *testing.T) {
		uiPort := serve(t, okHandler)
		agg := NewAggregator([]ServiceSpec{
			quickSpec("app-api", deadPort(t), "/healthcheck", TierCritical),
			quickSpec("webui", uiPort, "/", TierSecondary),
			quickSpec("novnc", uiPort, "", TierOptional),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.False(t, verdict.OK)
		assert.Len(t, verdict.Statuses, 1, "lower tiers must not be probed")
	})

	t.Run("probes in tier order regardless of declaration order", func(t *testing.T) {
		port := serve(t, okHandler)
		agg := NewAggregator([]ServiceSpec{
			quickSpec("novnc", port, "", TierOptional),
			quickSpec("app-api", port, "/healthcheck", TierCritical),
			quickSpec("webui", port, "/", TierSecondary),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		require.Len(t, verdict.Statuses, 3)
		assert.Equal(t, "app-api", verdict.Statuses[0].Name)
		assert.Equal(t, "webui", verdict.Statuses[1].Name)
		assert.Equal(t, "novnc", verdict.Statuses[2].Name)
	})
}

func TestProbeRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("attempts bounded by max retries", func(t *testing.T) {
		spec := quickSpec("app-api", deadPort(t), "", TierCritical)
		agg := NewAggregator([]ServiceSpec{spec}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		require.Len(t, verdict.Statuses, 1)
		assert.Equal(t, spec.MaxRetries, verdict.Statuses[0].Attempts)
	})

	t.Run("first success stops retrying", func(t *testing.T) {
		port := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		agg := NewAggregator([]ServiceSpec{
			quickSpec("app-api", port, "/healthcheck", TierCritical),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.Equal(t, 1, verdict.Statuses[0].Attempts)
	})

	t.Run("zero retries treated as one attempt", func(t *testing.T) {
		spec := quickSpec("app-api", deadPort(t), "", TierCritical)
		spec.MaxRetries = 0
		agg := NewAggregator([]ServiceSpec{spec}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.Equal(t, 1, verdict.Statuses[0].Attempts)
	})

	t.Run("wall clock bounded", func(t *testing.T) {
		spec := quickSpec("app-api", deadPort(t), "", TierCritical)
		agg := NewAggregator([]ServiceSpec{spec}, NewProber(), logging.NewNop())

		start := time.Now()
		agg.Check(ctx)
		bound := time.Duration(spec.MaxRetries)*(spec.Timeout+spec.RetryDelay) + 500*time.Millisecond
		assert.Less(t, time.Since(start), bound)
	})

	t.Run("cancelled context stops the retry loop", func(t *testing.T) {
		spec := quickSpec("app-api", deadPort(t), "", TierCritical)
		spec.MaxRetries = 10
		spec.RetryDelay = time.Second
		agg := NewAggregator([]ServiceSpec{spec}, NewProber(), logging.NewNop())

		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		verdict := agg.Check(cctx)
		assert.False(t, verdict.OK)
		assert.Less(t, time.Since(start), 3*time.Second)
	})
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("healthy report", func(t *testing.T) {
		port := serve(t, okHandler)
		agg := NewAggregator([]ServiceSpec{
			quickSpec("app-api", port, "/healthcheck", TierCritical),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.True(t, strings.HasPrefix(verdict.Report, "healthy\n"))
		assert.Contains(t, verdict.Report, "[OK  ] app-api")
		assert.Contains(t, verdict.Report, "tier=critical")
	})

	t.Run("unhealthy report carries the last error", func(t *testing.T) {
		agg := NewAggregator([]ServiceSpec{
			quickSpec("app-api", deadPort(t), "", TierCritical),
		}, NewProber(), logging.NewNop())

		verdict := agg.Check(ctx)
		assert.True(t, strings.HasPrefix(verdict.Report, "unhealthy\n"))
		assert.Contains(t, verdict.Report, "[FAIL] app-api")
		assert.Contains(t, verdict.Report, "last_error=")
	})
}
