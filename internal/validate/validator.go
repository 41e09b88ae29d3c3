package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/octool/octool/internal/domain"
	"github.com/octool/octool/internal/telemetry"
)

// ExecutablePath is the validator location relative to the core package
var ExecutablePath = filepath.Join("Utilities", "ocvalidate", "ocvalidate")

// Status is the verdict of one validator run
type Status int

const (
	// Clean means the validator exited zero
	Clean Status = iota
	// Flagged means the validator reported errors in the document
	Flagged
)

func (s Status) String() string {
	if s == Flagged {
		return "flagged"
	}
	return "clean"
}

// Report is the result of running the validator against a document
type Report struct {
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string
	// Diagnostics is the trimmed checker output, stdout first
	Diagnostics string
	Duration    time.Duration
}

// Config holds validator configuration
type Config struct {
	// Timeout bounds one validator run; zero means no limit
	Timeout time.Duration
	Logger  *slog.Logger
}

// Validator runs the external configuration checker
type Validator struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new validator
func New(cfg Config) *Validator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Validator{timeout: cfg.Timeout, logger: cfg.Logger}
}

// Executable returns the validator path inside corePkgPath
func Executable(corePkgPath string) string {
	return filepath.Join(corePkgPath, ExecutablePath)
}

// Validate checks documentPath with the validator shipped in corePkgPath.
// A non-zero exit is a flagged report, not an error.
func (v *Validator) Validate(ctx context.Context, documentPath, corePkgPath string) (*Report, error) {
	exe := Executable(corePkgPath)
	info, err := os.Stat(exe)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidatorMissing, exe)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrValidatorMissing, exe)
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, documentPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		telemetry.ValidationRuns.WithLabelValues("launch_failed").Inc()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrValidatorLaunchFailed, exe, err)
	}
	waitErr := cmd.Wait()
	duration := time.Since(start)
	telemetry.ValidationDuration.Observe(duration.Seconds())

	report := &Report{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) || ctx.Err() != nil {
			telemetry.ValidationRuns.WithLabelValues("launch_failed").Inc()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrValidatorLaunchFailed, exe, waitErr)
		}
		report.Status = Flagged
		report.ExitCode = exitErr.ExitCode()
	}
	report.Diagnostics = diagnostics(report.Stdout, report.Stderr)

	telemetry.ValidationRuns.WithLabelValues(report.Status.String()).Inc()
	v.logger.Info("validation completed",
		"document", documentPath,
		"status", report.Status.String(),
		"exit_code", report.ExitCode,
		"duration", duration,
	)
	return report, nil
}

func diagnostics(stdout, stderr string) string {
	var parts []string
	for _, s := range []string{stdout, stderr} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
