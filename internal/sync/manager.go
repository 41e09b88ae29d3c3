package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/octool/octool/internal/domain"
	"github.com/octool/octool/internal/gitstore"
	"github.com/octool/octool/internal/telemetry"
)

// Repository is a local mirror the manager can synchronize
type Repository interface {
	Name() string
	Sync(ctx context.Context) (gitstore.Outcome, error)
	Checkout(ctx context.Context, rev string) (gitstore.Outcome, error)
	// CheckoutLocal is Checkout without touching the remote
	CheckoutLocal(ctx context.Context, rev string) (gitstore.Outcome, error)
	Local() domain.LocalRepository
}

// Manager runs repository synchronization one repository at a time
type Manager struct {
	timeout    time.Duration
	retries    int
	backoff    time.Duration
	maxBackoff time.Duration
	offline    bool
	logger     *slog.Logger
}

// Config holds sync manager configuration
type Config struct {
	// Timeout bounds each network attempt; expiry counts as the network
	// being unavailable
	Timeout time.Duration
	// Retries is the total number of attempts for network failures
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Offline skips remote synchronization entirely
	Offline bool
	Logger  *slog.Logger
}

// Result is the outcome of synchronizing one repository
type Result struct {
	Name     string
	Outcome  gitstore.Outcome
	Err      error
	Stale    bool
	Skipped  bool
	Duration time.Duration
	Local    domain.LocalRepository
}

// NewManager creates a new sync manager
func NewManager(cfg Config) *Manager {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
		offline:    cfg.Offline,
		logger:     cfg.Logger,
	}
}

// Sync brings repo up to date with its remote branch
func (m *Manager) Sync(ctx context.Context, repo Repository) Result {
	if m.offline {
		m.logger.Info("offline, using local state", "repo", repo.Name())
		return Result{
			Name:    repo.Name(),
			Stale:   true,
			Skipped: true,
			Local:   repo.Local(),
		}
	}

	return m.run(ctx, repo, "sync", func(ctx context.Context) (gitstore.Outcome, error) {
		return repo.Sync(ctx)
	})
}

// SyncAll synchronizes every repository in order. Failures never stop the
// batch; callers inspect each result.
func (m *Manager) SyncAll(ctx context.Context, repos ...Repository) []Result {
	results := make([]Result, 0, len(repos))
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Name: repo.Name(), Err: err, Stale: true, Local: repo.Local()})
			continue
		}
		results = append(results, m.Sync(ctx, repo))
	}
	return results
}

// Checkout moves repo to the resolved revision. Offline, only revisions
// already in the clone are reachable; a miss leaves the repository stale.
func (m *Manager) Checkout(ctx context.Context, repo Repository, rev string) Result {
	if !m.offline {
		return m.run(ctx, repo, "checkout", func(ctx context.Context) (gitstore.Outcome, error) {
			return repo.Checkout(ctx, rev)
		})
	}

	return m.run(ctx, repo, "checkout", func(ctx context.Context) (gitstore.Outcome, error) {
		outcome, err := repo.CheckoutLocal(ctx, rev)
		if errors.Is(err, domain.ErrRevisionNotFound) {
			return outcome, fmt.Errorf("%w: offline: %w", domain.ErrNetworkUnavailable, err)
		}
		return outcome, err
	})
}

func (m *Manager) run(ctx context.Context, repo Repository, op string, fn func(context.Context) (gitstore.Outcome, error)) Result {
	start := time.Now()
	name := repo.Name()
	m.logger.Info("starting "+op, "repo", name)

	outcome, err := m.withRetry(ctx, name, fn)
	duration := time.Since(start)

	result := Result{
		Name:     name,
		Outcome:  outcome,
		Err:      err,
		Stale:    err != nil,
		Duration: duration,
		Local:    repo.Local(),
	}

	if err != nil {
		telemetry.ObserveSync(name, "error", duration)
		telemetry.SyncErrors.WithLabelValues(name, errorKind(err)).Inc()
		m.logger.Warn(op+" failed",
			"repo", name,
			"error", err,
			"recoverable", domain.Recoverable(err),
			"duration", duration,
		)
		return result
	}

	telemetry.ObserveSync(name, outcome.String(), duration)
	m.logger.Info(op+" completed",
		"repo", name,
		"outcome", outcome.String(),
		"commit", result.Local.Head,
		"duration", duration,
	)
	return result
}

// withRetry retries network failures with capped exponential backoff
func (m *Manager) withRetry(ctx context.Context, name string, fn func(context.Context) (gitstore.Outcome, error)) (gitstore.Outcome, error) {
	var lastErr error
	backoff := m.backoff

	for attempt := 0; attempt < m.retries; attempt++ {
		outcome, err := m.attempt(ctx, fn)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrNetworkUnavailable) || m.offline || attempt == m.retries-1 {
			break
		}

		m.logger.Warn("attempt failed",
			"repo", name,
			"attempt", attempt+1,
			"max_retries", m.retries,
			"error", err,
			"next_backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return gitstore.AlreadyUpToDate, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > m.maxBackoff {
				backoff = m.maxBackoff
			}
		}
	}

	return gitstore.AlreadyUpToDate, lastErr
}

func (m *Manager) attempt(ctx context.Context, fn func(context.Context) (gitstore.Outcome, error)) (gitstore.Outcome, error) {
	if m.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return fn(ctx)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetworkUnavailable):
		return "network"
	case errors.Is(err, domain.ErrDivergedLocalState):
		return "diverged"
	case errors.Is(err, domain.ErrRevisionNotFound):
		return "revision"
	default:
		return "other"
	}
}
