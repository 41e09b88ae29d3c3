package session

import (
	"time"

	"github.com/octool/octool/internal/domain"
	"github.com/octool/octool/internal/gitstore"
	reposync "github.com/octool/octool/internal/sync"
	"github.com/octool/octool/internal/validate"
)

// Report summarizes one session start
type Report struct {
	BuildType        string
	ResourceSections []string
	DocumentPath     string
	// OpenCorePkg is the core package payload directory
	OpenCorePkg string

	Syncs      []reposync.Result
	Components []ComponentStatus

	// ReferenceErr is set when the reference document could not be loaded
	ReferenceErr    error
	MissingSections []string
	// UnknownSettings are tool config keys the tool does not read
	UnknownSettings []string

	// Validation is nil when the validator could not run
	Validation    *validate.Report
	ValidationErr error

	SectionCount int
	Duration     time.Duration
}

// ComponentStatus is the resolved version of one component and the state
// of its local mirror
type ComponentStatus struct {
	Resolved domain.ResolvedVersion
	// Tracked is false for components without a repository
	Tracked bool
	Local   domain.LocalRepository
	// ResourcePath is the payload directory inside the local clone
	ResourcePath string
	Outcome      gitstore.Outcome
	Err          error
}

// Stale reports whether any repository is possibly out of date
func (r *Report) Stale() bool {
	for _, s := range r.Syncs {
		if s.Stale {
			return true
		}
	}
	for _, c := range r.Components {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// ValidationSkipped reports whether the validator did not run
func (r *Report) ValidationSkipped() bool {
	return r.Validation == nil
}

// Warnings lists the non-fatal problems of the session
func (r *Report) Warnings() []string {
	var out []string
	for _, s := range r.Syncs {
		switch {
		case s.Skipped:
			out = append(out, s.Name+": offline, using local state")
		case s.Err != nil:
			out = append(out, s.Name+": "+s.Err.Error())
		}
	}
	for _, c := range r.Components {
		if c.Err != nil {
			out = append(out, c.Resolved.Component+": "+c.Err.Error())
		}
	}
	for _, key := range r.UnknownSettings {
		out = append(out, "tool config: unknown setting "+key)
	}
	if r.ReferenceErr != nil {
		out = append(out, "reference document: "+r.ReferenceErr.Error())
	}
	if r.ValidationErr != nil {
		out = append(out, "validation skipped: "+r.ValidationErr.Error())
	}
	if r.Validation != nil && r.Validation.Status == validate.Flagged {
		out = append(out, "errors found in "+r.DocumentPath)
	}
	return out
}
