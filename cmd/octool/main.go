package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/octool/octool/internal/config"
	"github.com/octool/octool/internal/domain"
	"github.com/octool/octool/internal/report"
	"github.com/octool/octool/internal/session"
	"github.com/octool/octool/internal/telemetry"
)

var version = "dev"

const defaultDocument = "INPUT/config.plist"

type options struct {
	configPath  string
	build       string
	offline     bool
	logLevel    string
	logFormat   string
	metricsFile string
	document    string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		slog.Error("octool failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("octool", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "tool configuration file")
	fs.StringVar(&opts.build, "build", "", "build channel, overrides build_version")
	fs.BoolVar(&opts.offline, "offline", false, "skip remote synchronization and use local state")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write metrics in textfile format to this path")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: octool [flags] [config.plist]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch fs.NArg() {
	case 0:
		opts.document = defaultDocument
	case 1:
		opts.document = fs.Arg(0)
	default:
		return opts, fmt.Errorf("expected at most one document path, got %d", fs.NArg())
	}

	if opts.build != "" && !domain.ChannelRegex.MatchString(opts.build) {
		return opts, fmt.Errorf("invalid build channel %q", opts.build)
	}
	return opts, nil
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg, opts)

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(cfg.OTLPEndpoint, version)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("tracer shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := session.New(cfg, session.Options{
		DocumentPath:   opts.document,
		ToolConfigPath: opts.configPath,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	rep, startErr := sess.Start(ctx)
	if rep != nil {
		fmt.Print(report.Render(rep))
	}

	if err := telemetry.WriteMetricsFile(cfg.MetricsFile); err != nil {
		logger.Warn("metrics not written", "path", cfg.MetricsFile, "error", err)
	}

	return startErr
}

// applyFlags lets command line flags override the loaded configuration
func applyFlags(cfg *config.Config, opts options) {
	if opts.build != "" {
		cfg.BuildVersion = opts.build
	}
	if opts.offline {
		cfg.Offline = true
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	if opts.metricsFile != "" {
		cfg.MetricsFile = opts.metricsFile
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
