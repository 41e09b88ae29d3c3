package validate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octool/octool/internal/domain"
)

// fakeCorePkg installs script as the validator of a temporary core package
func fakeCorePkg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script validator")
	}
	core := t.TempDir()
	exe := Executable(core)
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return core
}

func TestValidateClean(t *testing.T) {
	core := fakeCorePkg(t, `echo "Checking $1"; echo "No issues found"`)

	report, err := New(Config{}).Validate(context.Background(), "/tmp/config.plist", core)
	require.NoError(t, err)

	assert.Equal(t, Clean, report.Status)
	assert.Equal(t, 0, report.ExitCode)
	assert.Equal(t, "Checking /tmp/config.plist\nNo issues found\n", report.Stdout)
	assert.Equal(t, "Checking /tmp/config.plist\nNo issues found", report.Diagnostics)
}

func TestValidateFlagged(t *testing.T) {
	core := fakeCorePkg(t, `echo "Missing key X" >&2; exit 1`)

	report, err := New(Config{}).Validate(context.Background(), "config.plist", core)
	require.NoError(t, err)

	assert.Equal(t, Flagged, report.Status)
	assert.Equal(t, 1, report.ExitCode)
	assert.Equal(t, "Missing key X", report.Diagnostics)
	assert.Equal(t, "Missing key X\n", report.Stderr)
	assert.Empty(t, report.Stdout)
}

func TestValidateFlaggedCombinesOutput(t *testing.T) {
	core := fakeCorePkg(t, `echo "  2 issues  "; echo "Kernel->Add[0] bad" >&2; exit 3`)

	report, err := New(Config{}).Validate(context.Background(), "config.plist", core)
	require.NoError(t, err)

	assert.Equal(t, Flagged, report.Status)
	assert.Equal(t, 3, report.ExitCode)
	assert.Equal(t, "2 issues\nKernel->Add[0] bad", report.Diagnostics)
}

func TestValidateMissing(t *testing.T) {
	_, err := New(Config{}).Validate(context.Background(), "config.plist", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrValidatorMissing)

	core := t.TempDir()
	require.NoError(t, os.MkdirAll(Executable(core), 0755))
	_, err = New(Config{}).Validate(context.Background(), "config.plist", core)
	assert.ErrorIs(t, err, domain.ErrValidatorMissing)
}

func TestValidateLaunchFailed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes")
	}
	core := t.TempDir()
	exe := Executable(core)
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0755))
	require.NoError(t, os.WriteFile(exe, []byte("not a program"), 0644))

	_, err := New(Config{}).Validate(context.Background(), "config.plist", core)
	assert.ErrorIs(t, err, domain.ErrValidatorLaunchFailed)
}

func TestValidateTimeout(t *testing.T) {
	core := fakeCorePkg(t, `exec sleep 5`)

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Validate(context.Background(), "config.plist", core)
	assert.ErrorIs(t, err, domain.ErrValidatorLaunchFailed)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "clean", Clean.String())
	assert.Equal(t, "flagged", Flagged.String())
}
