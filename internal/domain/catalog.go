package domain

import "time"

// CatalogID names one of the catalogs known to the loader
type CatalogID string

const (
	// CatalogTool is the internal tool configuration catalog
	CatalogTool CatalogID = "tool"
	// CatalogVendor is the vendor release catalog
	CatalogVendor CatalogID = "vendor"
	// CatalogBuild is the continuous-build catalog
	CatalogBuild CatalogID = "build"
)

// BuildRecord is a single published build of a component
type BuildRecord struct {
	Channel     string `json:"channel" yaml:"channel" validate:"required"`
	Version     string `json:"version" yaml:"version" validate:"required"`
	Commit      string `json:"commit,omitempty" yaml:"commit,omitempty" validate:"omitempty,hexadecimal"`
	PublishTime int64  `json:"publish_time" yaml:"publish_time" validate:"gte=0"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
}

// Identifier returns the revision a local mirror must be at for this record
func (r BuildRecord) Identifier() string {
	if r.Commit != "" {
		return r.Commit
	}
	return r.Version
}

// VersionCatalog is a read-only snapshot mapping component names to records
type VersionCatalog struct {
	ID       CatalogID
	Path     string
	LoadedAt time.Time
	Stale    bool

	order   []string
	records map[string][]BuildRecord
}

// NewVersionCatalog creates a catalog snapshot. Component order is kept as given.
func NewVersionCatalog(id CatalogID, components []string, records map[string][]BuildRecord) *VersionCatalog {
	c := &VersionCatalog{
		ID:      id,
		order:   make([]string, 0, len(components)),
		records: make(map[string][]BuildRecord, len(records)),
	}
	for _, name := range components {
		if _, dup := c.records[name]; dup {
			continue
		}
		recs := make([]BuildRecord, len(records[name]))
		copy(recs, records[name])
		c.order = append(c.order, name)
		c.records[name] = recs
	}
	return c
}

// Components returns component names in catalog order
func (c *VersionCatalog) Components() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Records returns a copy of the records published for a component
func (c *VersionCatalog) Records(component string) ([]BuildRecord, bool) {
	recs, ok := c.records[component]
	if !ok {
		return nil, false
	}
	out := make([]BuildRecord, len(recs))
	copy(out, recs)
	return out, true
}

// Len returns the number of components in the catalog
func (c *VersionCatalog) Len() int {
	return len(c.order)
}

// ResolvedVersion is the build chosen for a component on a channel
type ResolvedVersion struct {
	Component string
	Channel   string
	Record    BuildRecord

	// Vendor holds the vendor catalog record for the same version, if any.
	// It is metadata only and never changes the selection.
	Vendor *BuildRecord
}

// Identifier returns the revision the component must be synced to
func (v ResolvedVersion) Identifier() string {
	return v.Record.Identifier()
}

// Version returns the resolved version string
func (v ResolvedVersion) Version() string {
	return v.Record.Version
}
