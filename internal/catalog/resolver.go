package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/octool/octool/internal/domain"
)

// minAbbrevLen is the shortest commit prefix accepted as an identifier match
const minAbbrevLen = 7

// Resolve picks the build of component published last on channel.
// Channel labels must match exactly. Ties on publish time go to the
// highest version. It performs no I/O.
func Resolve(component, channel string, build *domain.VersionCatalog) (domain.ResolvedVersion, error) {
	if build == nil {
		return domain.ResolvedVersion{}, fmt.Errorf("%w: no build catalog", domain.ErrNoMatchingChannel)
	}

	records, ok := build.Records(component)
	if !ok {
		return domain.ResolvedVersion{}, fmt.Errorf("%w: %s is not listed in the %s catalog",
			domain.ErrNoMatchingChannel, component, build.ID)
	}

	var best *domain.BuildRecord
	var tied []domain.BuildRecord
	for i := range records {
		rec := &records[i]
		if rec.Channel != channel {
			continue
		}
		if best == nil {
			best = rec
			tied = tied[:0]
			continue
		}

		c := compareRecords(*rec, *best)
		switch {
		case c > 0:
			best = rec
			tied = tied[:0]
		case c == 0 && *rec != *best:
			tied = append(tied, *rec)
		}
	}

	if best == nil {
		return domain.ResolvedVersion{}, fmt.Errorf("%w: %s has no %q build", domain.ErrNoMatchingChannel, component, channel)
	}
	if len(tied) > 0 {
		return domain.ResolvedVersion{}, fmt.Errorf("%w: %s has %d %q builds for version %s at the same time",
			domain.ErrAmbiguousLatest, component, len(tied)+1, channel, best.Version)
	}

	return domain.ResolvedVersion{
		Component: component,
		Channel:   channel,
		Record:    *best,
	}, nil
}

func compareRecords(a, b domain.BuildRecord) int {
	switch {
	case a.PublishTime > b.PublishTime:
		return 1
	case a.PublishTime < b.PublishTime:
		return -1
	}
	return CompareVersions(a.Version, b.Version)
}

// Resolver combines the authoritative build catalog with the vendor catalog.
// The two snapshots are kept separate so each keeps its own staleness.
type Resolver struct {
	build  *domain.VersionCatalog
	vendor *domain.VersionCatalog
}

// NewResolver creates a resolver. vendor may be nil.
func NewResolver(build, vendor *domain.VersionCatalog) *Resolver {
	return &Resolver{build: build, vendor: vendor}
}

// Resolve resolves component on channel against the build catalog and
// attaches the vendor record for the same version when one exists
func (r *Resolver) Resolve(component, channel string) (domain.ResolvedVersion, error) {
	resolved, err := Resolve(component, channel, r.build)
	if err != nil {
		return resolved, err
	}

	if r.vendor != nil {
		if recs, ok := r.vendor.Records(component); ok {
			for i := range recs {
				if CompareVersions(recs[i].Version, resolved.Record.Version) == 0 {
					vendor := recs[i]
					resolved.Vendor = &vendor
					break
				}
			}
		}
	}

	return resolved, nil
}

// Stale reports whether either snapshot could not be refreshed
func (r *Resolver) Stale() bool {
	return (r.build != nil && r.build.Stale) || (r.vendor != nil && r.vendor.Stale)
}

// Reconcile reports whether local must be synced to reach resolved
func Reconcile(local domain.LocalRepository, resolved domain.ResolvedVersion) bool {
	if !local.Exists() {
		return true
	}

	if commit := resolved.Record.Commit; commit != "" {
		return !matchesCommit(local.Head, commit)
	}

	version := resolved.Record.Version
	return !slices.Contains(local.Tags, version) && !slices.Contains(local.Tags, "v"+version)
}

func matchesCommit(head, commit string) bool {
	head = strings.ToLower(head)
	commit = strings.ToLower(commit)
	if len(commit) >= len(head) {
		return head == commit
	}
	return len(commit) >= minAbbrevLen && strings.HasPrefix(head, commit)
}
