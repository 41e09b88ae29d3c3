package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/octool/octool/internal/catalog"
	"github.com/octool/octool/internal/config"
	"github.com/octool/octool/internal/document"
	"github.com/octool/octool/internal/domain"
	"github.com/octool/octool/internal/github"
	"github.com/octool/octool/internal/gitstore"
	"github.com/octool/octool/internal/position"
	reposync "github.com/octool/octool/internal/sync"
	"github.com/octool/octool/internal/telemetry"
	"github.com/octool/octool/internal/validate"
)

// CoreComponent is the catalog name of the core package
const CoreComponent = "OpenCorePkg"

// Options holds per-run session inputs
type Options struct {
	// DocumentPath is the user's configuration document
	DocumentPath string
	// ToolConfigPath is checked for settings the tool does not read
	ToolConfigPath string
	Logger         *slog.Logger
}

// Session owns all state of one tool run
type Session struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	loader    *catalog.Loader
	manager   *reposync.Manager
	validator *validate.Validator
	resolver  *catalog.Resolver

	core   *gitstore.Store
	builds *gitstore.Store
	stores map[string]*gitstore.Store

	binding  *document.Binding
	position *position.Position
	report   *Report
}

// New wires a session from the tool configuration
func New(cfg *config.Config, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("tool config is required")
	}
	if opts.DocumentPath == "" {
		return nil, errors.New("document path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	auth, err := github.FromCredentials(cfg.GitHubToken, cfg.GitHubAppID, cfg.GitHubAppPrivateKey, cfg.GitHubInstallationID)
	if err != nil {
		return nil, fmt.Errorf("failed to set up git credentials: %w", err)
	}

	s := &Session{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger,
		stores: make(map[string]*gitstore.Store),
		position: &position.Position{
			BuildType:        cfg.BuildVersion,
			ResourceSections: cfg.ResourceSections,
		},
	}

	newStore := func(name, url, path, branch string) (*gitstore.Store, error) {
		storeCfg := gitstore.Config{
			Name:      name,
			RepoURL:   url,
			Branch:    branch,
			LocalPath: path,
			Logger:    opts.Logger,
		}
		if auth != nil {
			storeCfg.Auth = auth
		}
		return gitstore.New(storeCfg)
	}

	if s.core, err = newStore(CoreComponent, cfg.OpenCorePkgURL, cfg.OpenCorePkgPath, cfg.OpenCorePkgBranch); err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", CoreComponent, err)
	}
	s.stores[CoreComponent] = s.core

	if s.builds, err = newStore("build_repo", cfg.DortaniaConfigURL, cfg.DortaniaConfigPath, cfg.DortaniaConfigBranch); err != nil {
		return nil, fmt.Errorf("failed to create build catalog store: %w", err)
	}

	for _, c := range cfg.Components {
		if c.URL == "" {
			continue
		}
		store, err := newStore(c.Name, c.URL, c.Path, c.Branch)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s store: %w", c.Name, err)
		}
		s.stores[c.Name] = store
	}

	paths := map[domain.CatalogID]string{
		domain.CatalogBuild:  cfg.BuildCatalogPath(),
		domain.CatalogVendor: cfg.VendorCatalogPath,
	}
	if opts.ToolConfigPath != "" {
		paths[domain.CatalogTool] = opts.ToolConfigPath
	}
	if s.loader, err = catalog.NewLoader(catalog.Config{Paths: paths, Logger: opts.Logger}); err != nil {
		return nil, err
	}

	s.manager = reposync.NewManager(reposync.Config{
		Timeout: cfg.SyncTimeout,
		Retries: cfg.SyncRetries,
		Offline: cfg.Offline,
		Logger:  opts.Logger,
	})
	s.validator = validate.New(validate.Config{
		Timeout: cfg.ValidateTimeout,
		Logger:  opts.Logger,
	})

	return s, nil
}

// Start runs the startup sequence. Recoverable failures are recorded on
// the report; any other failure aborts the session.
func (s *Session) Start(ctx context.Context) (*Report, error) {
	start := time.Now()
	s.report = &Report{
		BuildType:        s.cfg.BuildVersion,
		ResourceSections: s.position.ResourceLabels(),
		DocumentPath:     s.opts.DocumentPath,
	}
	s.logger.Info("session starting",
		"build_version", s.cfg.BuildVersion,
		"resource_sections", s.report.ResourceSections,
		"offline", s.cfg.Offline,
	)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"sync_core", s.syncCore},
		{"sync_components", s.syncComponents},
		{"load_document", s.loadDocument},
		{"load_catalogs", s.loadCatalogs},
		{"resolve", s.resolve},
		{"validate", s.validate},
		{"bind_position", s.bindPosition},
	}

	for _, st := range steps {
		if err := s.step(ctx, st.name, st.fn); err != nil {
			s.report.Duration = time.Since(start)
			return s.report, err
		}
	}

	s.report.Duration = time.Since(start)
	s.logger.Info("session ready",
		"document", s.opts.DocumentPath,
		"open_core_pkg", s.report.OpenCorePkg,
		"stale", s.report.Stale(),
		"duration", s.report.Duration,
	)
	return s.report, nil
}

func (s *Session) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session interrupted before %s: %w", name, err)
	}
	ctx, span := telemetry.StartStep(ctx, name, attribute.String("build_version", s.cfg.BuildVersion))
	err := fn(ctx)
	telemetry.EndStep(span, err)
	return err
}

func (s *Session) syncCore(ctx context.Context) error {
	return s.sync(ctx, s.core)
}

func (s *Session) syncComponents(ctx context.Context) error {
	var repos []reposync.Repository
	for _, c := range s.cfg.Components {
		if store, ok := s.stores[c.Name]; ok {
			repos = append(repos, store)
		}
	}
	if len(repos) == 0 {
		return nil
	}

	for _, result := range s.manager.SyncAll(ctx, repos...) {
		if err := s.record(result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) sync(ctx context.Context, store *gitstore.Store) error {
	return s.record(s.manager.Sync(ctx, store))
}

// record adds a sync result to the report and fails only on
// unrecoverable errors
func (s *Session) record(result reposync.Result) error {
	s.report.Syncs = append(s.report.Syncs, result)
	if result.Err == nil || domain.Recoverable(result.Err) {
		if result.Err != nil {
			s.logger.Warn("using local state", "repo", result.Name, "error", result.Err)
		}
		return nil
	}
	return fmt.Errorf("failed to sync %s: %w", result.Name, result.Err)
}

func (s *Session) loadDocument(ctx context.Context) error {
	refPath := s.cfg.ReferencePlist
	if refPath != "" && !filepath.IsAbs(refPath) {
		refPath = filepath.Join(s.core.Path(), refPath)
	}

	binding, err := document.Bind(s.opts.DocumentPath, refPath, s.logger)
	if err != nil {
		return err
	}
	s.binding = binding
	s.report.ReferenceErr = binding.ReferenceErr
	s.report.MissingSections = binding.MissingSections()
	return nil
}

func (s *Session) loadCatalogs(ctx context.Context) error {
	if err := s.sync(ctx, s.builds); err != nil {
		return err
	}
	if last := s.report.Syncs[len(s.report.Syncs)-1]; last.Stale {
		s.loader.MarkStale(domain.CatalogBuild)
	}

	if s.opts.ToolConfigPath != "" {
		raw, err := s.loader.Raw(domain.CatalogTool)
		if err != nil {
			return fmt.Errorf("failed to load tool config: %w", err)
		}
		s.report.UnknownSettings = config.UnknownKeys(raw)
		if len(s.report.UnknownSettings) > 0 {
			s.logger.Warn("unknown settings in tool config",
				"path", s.opts.ToolConfigPath,
				"keys", s.report.UnknownSettings,
			)
		}
	}

	build, err := s.loader.Load(domain.CatalogBuild)
	if err != nil {
		return fmt.Errorf("failed to load build catalog: %w", err)
	}
	vendor, err := s.loader.Load(domain.CatalogVendor)
	if err != nil {
		return fmt.Errorf("failed to load vendor catalog: %w", err)
	}
	s.resolver = catalog.NewResolver(build, vendor)
	return nil
}

// resolve resolves every component before any checkout so a missing
// channel aborts the session with no repository moved
func (s *Session) resolve(ctx context.Context) error {
	names := []string{CoreComponent}
	payloads := map[string]string{}
	for _, c := range s.cfg.Components {
		names = append(names, c.Name)
		payloads[c.Name] = c.Payload
	}

	for _, name := range names {
		resolved, err := s.resolver.Resolve(name, s.cfg.BuildVersion)
		if err != nil {
			telemetry.Resolutions.WithLabelValues(name, s.cfg.BuildVersion, "error").Inc()
			return fmt.Errorf("failed to resolve %s: %w", name, err)
		}
		telemetry.Resolutions.WithLabelValues(name, s.cfg.BuildVersion, "resolved").Inc()
		s.logger.Info("component resolved",
			"component", name,
			"channel", s.cfg.BuildVersion,
			"version", resolved.Version(),
			"identifier", resolved.Identifier(),
			"vendor_release", resolved.Vendor != nil,
		)
		s.report.Components = append(s.report.Components, ComponentStatus{Resolved: resolved})
	}

	for i := range s.report.Components {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("session interrupted during checkout: %w", err)
		}
		cs := &s.report.Components[i]
		if err := s.checkout(ctx, cs, payloads[cs.Resolved.Component]); err != nil {
			return err
		}
	}
	return nil
}

// checkout moves a tracked component to its resolved version and
// recomputes its resource path
func (s *Session) checkout(ctx context.Context, cs *ComponentStatus, payload string) error {
	store, ok := s.stores[cs.Resolved.Component]
	if !ok {
		return nil
	}
	cs.Tracked = true
	cs.Local = store.Local()
	cs.ResourcePath = filepath.Join(cs.Local.Path, payload)

	if !catalog.Reconcile(cs.Local, cs.Resolved) {
		cs.Outcome = gitstore.AlreadyUpToDate
		return nil
	}

	result := s.manager.Checkout(ctx, store, cs.Resolved.Identifier())
	cs.Outcome = result.Outcome
	cs.Local = result.Local
	cs.ResourcePath = filepath.Join(cs.Local.Path, payload)
	cs.Err = result.Err
	if result.Err == nil || domain.Recoverable(result.Err) {
		return nil
	}
	return fmt.Errorf("failed to check out %s %s: %w", cs.Resolved.Component, cs.Resolved.Version(), result.Err)
}

func (s *Session) validate(ctx context.Context) error {
	s.report.OpenCorePkg = s.report.Components[0].ResourcePath

	report, err := s.validator.Validate(ctx, s.opts.DocumentPath, s.report.OpenCorePkg)
	if errors.Is(err, domain.ErrValidatorMissing) {
		s.logger.Warn("validation skipped", "error", err)
		s.report.ValidationErr = err
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", s.opts.DocumentPath, err)
	}

	s.report.Validation = report
	if report.Status == validate.Flagged {
		s.logger.Warn("errors found in configuration document",
			"document", s.opts.DocumentPath,
			"exit_code", report.ExitCode,
		)
	}
	return nil
}

func (s *Session) bindPosition(ctx context.Context) error {
	if err := s.position.Bind(s.binding.Config); err != nil {
		return fmt.Errorf("failed to bind position: %w", err)
	}
	s.report.SectionCount = s.position.SecLength(0)
	return nil
}

// Position returns the editor cursor, bound once Start succeeds
func (s *Session) Position() *position.Position {
	return s.position
}

// Document returns the loaded document binding
func (s *Session) Document() *document.Binding {
	return s.binding
}

// Catalogs returns the session's catalog loader
func (s *Session) Catalogs() *catalog.Loader {
	return s.loader
}
