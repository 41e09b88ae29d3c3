package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octool/octool/internal/domain"
)

const buildCatalogJSON = `{
  "OpenCorePkg": [
    {"channel": "release", "version": "0.9.2", "publish_time": 10},
    {"channel": "release", "version": "0.9.3", "commit": "4f2c8d9e", "publish_time": 20},
    {"channel": "debug", "version": "0.9.3-DEBUG", "publish_time": 20}
  ],
  "Lilu": [
    {"channel": "release", "version": "1.6.7", "publish_time": 3}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newLoader(t *testing.T, paths map[domain.CatalogID]string) *Loader {
	t.Helper()
	l, err := NewLoader(Config{Paths: paths})
	require.NoError(t, err)
	return l
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, "config.json", buildCatalogJSON)
	l := newLoader(t, map[domain.CatalogID]string{domain.CatalogBuild: path})

	cat, err := l.Load(domain.CatalogBuild)
	require.NoError(t, err)

	assert.Equal(t, domain.CatalogBuild, cat.ID)
	assert.Equal(t, path, cat.Path)
	assert.Equal(t, []string{"OpenCorePkg", "Lilu"}, cat.Components())
	assert.False(t, cat.Stale)

	recs, ok := cat.Records("OpenCorePkg")
	require.True(t, ok)
	require.Len(t, recs, 3)
	assert.Equal(t, "4f2c8d9e", recs[1].Commit)
	assert.Equal(t, int64(20), recs[1].PublishTime)

	resolved, err := Resolve("OpenCorePkg", "release", cat)
	require.NoError(t, err)
	assert.Equal(t, "0.9.3", resolved.Version())
}

func TestLoaderCachesSnapshots(t *testing.T) {
	path := writeFile(t, "config.json", buildCatalogJSON)
	l := newLoader(t, map[domain.CatalogID]string{domain.CatalogBuild: path})

	_, err := l.Load(domain.CatalogBuild)
	require.NoError(t, err)
	_, err = l.Load(domain.CatalogBuild)
	require.NoError(t, err)

	assert.Equal(t, int64(1), l.CacheHits())
}

func TestLoaderRaw(t *testing.T) {
	path := writeFile(t, "octool_config.yaml", "build_version: release\nresource_sections:\n  - [Kernel, Add]\n")
	l := newLoader(t, map[domain.CatalogID]string{domain.CatalogTool: path})

	raw, err := l.Raw(domain.CatalogTool)
	require.NoError(t, err)
	assert.Equal(t, "release", raw["build_version"])
}

func TestLoaderMarkStale(t *testing.T) {
	path := writeFile(t, "config.json", buildCatalogJSON)
	l := newLoader(t, map[domain.CatalogID]string{domain.CatalogBuild: path})

	l.MarkStale(domain.CatalogBuild)
	cat, err := l.Load(domain.CatalogBuild)
	require.NoError(t, err)
	assert.True(t, cat.Stale)
	assert.True(t, NewResolver(cat, nil).Stale())
}

func TestLoaderUnavailable(t *testing.T) {
	l := newLoader(t, map[domain.CatalogID]string{
		domain.CatalogBuild:  filepath.Join(t.TempDir(), "missing.json"),
		domain.CatalogVendor: t.TempDir(),
	})

	_, err := l.Load(domain.CatalogBuild)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	_, err = l.Load(domain.CatalogVendor)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	_, err = l.Load(domain.CatalogTool)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestLoaderMalformed(t *testing.T) {
	tests := map[string]string{
		"not a document":       `{"OpenCorePkg": [`,
		"root is a list":       `[1, 2, 3]`,
		"records not a list":   `{"OpenCorePkg": {"channel": "release"}}`,
		"record lacks channel": `{"OpenCorePkg": [{"version": "0.9.3"}]}`,
		"record lacks version": `{"OpenCorePkg": [{"channel": "release"}]}`,
		"bad commit":           `{"OpenCorePkg": [{"channel": "release", "version": "1", "commit": "zzz"}]}`,
		"empty":                ``,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "config.json", content)
			l := newLoader(t, map[domain.CatalogID]string{domain.CatalogBuild: path})

			_, err := l.Load(domain.CatalogBuild)
			assert.ErrorIs(t, err, domain.ErrCatalogMalformed)
		})
	}
}

func TestLoaderAcceptsAnyChannelLabel(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "OpenCorePkg": [
    {"channel": "Release Candidate", "version": "0.9.4", "publish_time": 30},
    {"channel": "release", "version": "0.9.3", "publish_time": 20}
  ]
}`)
	l := newLoader(t, map[domain.CatalogID]string{domain.CatalogBuild: path})

	cat, err := l.Load(domain.CatalogBuild)
	require.NoError(t, err)

	resolved, err := Resolve("OpenCorePkg", "Release Candidate", cat)
	require.NoError(t, err)
	assert.Equal(t, "0.9.4", resolved.Version())

	_, err = Resolve("OpenCorePkg", "release candidate", cat)
	assert.ErrorIs(t, err, domain.ErrNoMatchingChannel)
}

func TestLoaderRawAndLoadShareSnapshot(t *testing.T) {
	path := writeFile(t, "config.json", `{"OpenCorePkg": [{"channel": "release", "version": "0.9.3"}]}`)
	info, err := os.Stat(path)
	require.NoError(t, err)
	l := newLoader(t, map[domain.CatalogID]string{domain.CatalogBuild: path})

	raw, err := l.Raw(domain.CatalogBuild)
	require.NoError(t, err)

	// same size and modification time, so the cached snapshot still applies
	require.NoError(t, os.WriteFile(path, []byte(`{"OpenCorePkg": [{"channel": "release", "version": "0.9.4"}]}`), 0644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	cat, err := l.Load(domain.CatalogBuild)
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.CacheHits())

	recs, ok := cat.Records("OpenCorePkg")
	require.True(t, ok)
	entries := raw["OpenCorePkg"].([]any)
	assert.Equal(t, entries[0].(map[string]any)["version"], recs[0].Version)
	assert.Equal(t, "0.9.3", recs[0].Version)
}
