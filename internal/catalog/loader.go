package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/octool/octool/internal/domain"
	"github.com/octool/octool/internal/telemetry"
)

// Loader reads catalogs from known local paths
type Loader struct {
	paths    map[domain.CatalogID]string
	cache    *lru.Cache[snapshotKey, *snapshot]
	validate *validator.Validate
	stale    map[domain.CatalogID]bool
	logger   *slog.Logger

	// Stats
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Config holds loader configuration
type Config struct {
	Paths     map[domain.CatalogID]string
	CacheSize int
	Logger    *slog.Logger
}

type snapshotKey struct {
	path    string
	modTime time.Time
	size    int64
}

// snapshot holds one read of a catalog file. The typed catalog is decoded
// lazily from content so Raw and Load always agree.
type snapshot struct {
	content []byte
	raw     map[string]any
	catalog *domain.VersionCatalog
}

// NewLoader creates a new catalog loader
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 16
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cache, err := lru.New[snapshotKey, *snapshot](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	paths := make(map[domain.CatalogID]string, len(cfg.Paths))
	for id, p := range cfg.Paths {
		paths[id] = p
	}

	return &Loader{
		paths:    paths,
		cache:    cache,
		validate: domain.NewValidator(),
		stale:    make(map[domain.CatalogID]bool),
		logger:   cfg.Logger,
	}, nil
}

// Path returns the path registered for a catalog
func (l *Loader) Path(id domain.CatalogID) (string, bool) {
	p, ok := l.paths[id]
	return p, ok
}

// MarkStale flags a catalog whose source could not be refreshed.
// Catalogs loaded afterwards carry the flag.
func (l *Loader) MarkStale(id domain.CatalogID) {
	l.stale[id] = true
}

// Raw loads a catalog as a generic document
func (l *Loader) Raw(id domain.CatalogID) (map[string]any, error) {
	snap, err := l.read(id)
	if err != nil {
		return nil, err
	}
	return snap.raw, nil
}

// Load loads a catalog as a typed version catalog
func (l *Loader) Load(id domain.CatalogID) (*domain.VersionCatalog, error) {
	snap, err := l.read(id)
	if err != nil {
		return nil, err
	}
	if snap.catalog == nil {
		cat, err := l.decodeCatalog(id, l.paths[id], snap.content)
		if err != nil {
			return nil, err
		}
		snap.catalog = cat
	}

	// Each caller gets its own view so the stale flag stays per session step
	out := *snap.catalog
	out.Stale = l.stale[id]
	return &out, nil
}

// CacheHits returns how many loads were served from the snapshot cache
func (l *Loader) CacheHits() int64 {
	return l.cacheHits.Load()
}

func (l *Loader) read(id domain.CatalogID) (*snapshot, error) {
	path, ok := l.paths[id]
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: no path registered for %s catalog", domain.ErrCatalogUnavailable, id)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s catalog not found at %s", domain.ErrCatalogUnavailable, id, path)
		}
		return nil, fmt.Errorf("%w: %s catalog: %v", domain.ErrCatalogUnavailable, id, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s catalog path %s is a directory", domain.ErrCatalogUnavailable, id, path)
	}

	key := snapshotKey{path: path, modTime: info.ModTime(), size: info.Size()}
	if snap, ok := l.cache.Get(key); ok {
		l.cacheHits.Add(1)
		telemetry.CatalogCacheHits.Inc()
		return snap, nil
	}
	l.cacheMisses.Add(1)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s catalog: %v", domain.ErrCatalogUnavailable, id, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s catalog: %v", domain.ErrCatalogMalformed, id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s catalog is empty", domain.ErrCatalogMalformed, id)
	}

	snap := &snapshot{content: content, raw: raw}
	l.cache.Add(key, snap)

	l.logger.Info("catalog loaded",
		"catalog", id,
		"path", path,
		"entries", len(raw),
	)

	return snap, nil
}

// decodeCatalog decodes the typed records from the bytes the snapshot was
// parsed from
func (l *Loader) decodeCatalog(id domain.CatalogID, path string, content []byte) (*domain.VersionCatalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s catalog: %v", domain.ErrCatalogMalformed, id, err)
	}
	if len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s catalog root must be a mapping", domain.ErrCatalogMalformed, id)
	}

	mapping := root.Content[0]
	names := make([]string, 0, len(mapping.Content)/2)
	records := make(map[string][]domain.BuildRecord, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		var recs []domain.BuildRecord
		if err := mapping.Content[i+1].Decode(&recs); err != nil {
			return nil, fmt.Errorf("%w: %s catalog entry %q: %v", domain.ErrCatalogMalformed, id, name, err)
		}
		for j := range recs {
			if err := domain.ValidateRecord(l.validate, &recs[j]); err != nil {
				return nil, fmt.Errorf("%w: %s catalog entry %q record %d: %v", domain.ErrCatalogMalformed, id, name, j, err)
			}
		}
		names = append(names, name)
		records[name] = recs
	}

	cat := domain.NewVersionCatalog(id, names, records)
	cat.Path = path
	cat.LoadedAt = time.Now()
	return cat, nil
}
