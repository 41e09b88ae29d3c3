package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetricsFile(t *testing.T) {
	ObserveSync("OpenCorePkg", "updated", 1500*time.Millisecond)
	ValidationRuns.WithLabelValues("clean").Inc()

	path := filepath.Join(t.TempDir(), "octool.prom")
	require.NoError(t, WriteMetricsFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(content)
	assert.Contains(t, out, `octool_sync_duration_seconds_count{outcome="updated",repo="OpenCorePkg"}`)
	assert.Contains(t, out, `octool_validation_runs_total{result="clean"}`)
	assert.Contains(t, out, "octool_last_session_timestamp_seconds")
}

func TestWriteMetricsFileDisabled(t *testing.T) {
	assert.NoError(t, WriteMetricsFile(""))
}

func TestResolutionsCounter(t *testing.T) {
	before := testutil.ToFloat64(Resolutions.WithLabelValues("Lilu", "release", "resolved"))
	Resolutions.WithLabelValues("Lilu", "release", "resolved").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Resolutions.WithLabelValues("Lilu", "release", "resolved")))
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer("", "dev")
	require.NoError(t, err)
	assert.Nil(t, shutdown)

	ctx, span := StartStep(context.Background(), "sync_core")
	assert.NotNil(t, ctx)
	EndStep(span, errors.New("boom"))
}

func TestCollectorsPassLint(t *testing.T) {
	SyncErrors.WithLabelValues("OpenCorePkg", "network")
	Resolutions.WithLabelValues("OpenCorePkg", "release", "resolved")
	ValidationRuns.WithLabelValues("flagged")
	ObserveSync("build_repo", "up_to_date", time.Second)
	ValidationDuration.Observe(0.5)

	collectors := map[string]prometheus.Collector{
		"sync_duration":       SyncDuration,
		"sync_errors":         SyncErrors,
		"catalog_cache_hits":  CatalogCacheHits,
		"resolutions":         Resolutions,
		"validation_runs":     ValidationRuns,
		"validation_duration": ValidationDuration,
		"last_session":        LastSessionTimestamp,
	}
	for name, c := range collectors {
		problems, err := testutil.CollectAndLint(c)
		require.NoError(t, err, name)
		assert.Empty(t, problems, name)
	}
}
