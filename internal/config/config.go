package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/octool/octool/internal/domain"
)

// DefaultPath is where the tool configuration lives relative to the working directory
const DefaultPath = "tool_config_files/octool_config.json"

// Config holds all tool configuration. It is immutable after Load.
type Config struct {
	// Build channel selector, e.g. release or debug
	BuildVersion string `yaml:"build_version" validate:"required,channel"`

	// Configuration sections that hold resources
	ResourceSections []domain.ResourceSection `yaml:"resource_sections" validate:"dive"`

	// OpenCorePkg source repository
	OpenCorePkgPath   string `yaml:"opencorepkg_path" validate:"required"`
	OpenCorePkgURL    string `yaml:"opencorepkg_url" validate:"required"`
	OpenCorePkgBranch string `yaml:"opencorepkg_branch"`

	// Continuous-build catalog repository
	DortaniaConfigPath   string `yaml:"dortania_config_path" validate:"required"`
	DortaniaConfigURL    string `yaml:"dortania_config_url" validate:"required"`
	DortaniaConfigBranch string `yaml:"dortania_config_branch"`
	BuildCatalogFile     string `yaml:"build_catalog_file"`

	// Vendor release catalog, a local file
	VendorCatalogPath string `yaml:"vendor_catalog_path"`

	// Reference document, relative to the OpenCorePkg payload when not absolute
	ReferencePlist string `yaml:"reference_plist"`

	// Extra components resolved alongside OpenCorePkg
	Components []Component `yaml:"components" validate:"dive"`

	// Sync settings
	SyncTimeout     time.Duration `yaml:"-"`
	ValidateTimeout time.Duration `yaml:"-"`
	SyncRetries     int           `yaml:"sync_retries" validate:"gte=1,lte=10"`
	Offline         bool          `yaml:"offline"`

	// Git authentication
	GitHubToken          string `yaml:"-"`
	GitHubAppID          int64  `yaml:"-"`
	GitHubAppPrivateKey  []byte `yaml:"-"`
	GitHubInstallationID int64  `yaml:"-"`

	// Observability
	LogLevel     string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat    string `yaml:"log_format" validate:"omitempty,oneof=json text"`
	MetricsFile  string `yaml:"metrics_file"`
	OTLPEndpoint string `yaml:"-"`
}

// Component is an extra tracked component. Path, URL and Branch are optional;
// without a repository the component is only resolved.
type Component struct {
	Name   string `yaml:"name" validate:"required"`
	Path   string `yaml:"path" validate:"required_with=URL"`
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
	// Payload is the resource directory inside the clone, empty for its root
	Payload string `yaml:"payload" validate:"omitempty,excludes=.."`
}

type fileDurations struct {
	SyncTimeout     string `yaml:"sync_timeout"`
	ValidateTimeout string `yaml:"validate_timeout"`
}

// UnknownKeys lists the top-level settings of a raw tool config that Load
// does not read, sorted
func UnknownKeys(raw map[string]any) []string {
	known := make(map[string]bool)
	for _, t := range []reflect.Type{reflect.TypeOf(Config{}), reflect.TypeOf(fileDurations{})} {
		for i := 0; i < t.NumField(); i++ {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
			if name != "" && name != "-" {
				known[name] = true
			}
		}
	}

	var unknown []string
	for key := range raw {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Load reads the tool configuration file and applies environment overrides
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{
		// Defaults
		OpenCorePkgBranch:    "master",
		DortaniaConfigBranch: "builds",
		BuildCatalogFile:     "config.json",
		VendorCatalogPath:    "tool_config_files/acidanthera_config.json",
		ReferencePlist:       "Docs/Sample.plist",
		SyncTimeout:          2 * time.Minute,
		ValidateTimeout:      30 * time.Second,
		SyncRetries:          3,
		LogLevel:             "info",
		LogFormat:            "text",
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tool config %s: %w", path, err)
	}

	var durations fileDurations
	if err := yaml.Unmarshal(content, &durations); err != nil {
		return nil, fmt.Errorf("failed to parse tool config %s: %w", path, err)
	}
	if durations.SyncTimeout != "" {
		if cfg.SyncTimeout, err = time.ParseDuration(durations.SyncTimeout); err != nil {
			return nil, fmt.Errorf("invalid sync_timeout: %w", err)
		}
	}
	if durations.ValidateTimeout != "" {
		if cfg.ValidateTimeout, err = time.ParseDuration(durations.ValidateTimeout); err != nil {
			return nil, fmt.Errorf("invalid validate_timeout: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := domain.NewValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid tool config %s: %w", path, err)
	}

	return cfg, nil
}

// BuildCatalogPath returns the location of the continuous-build catalog file
func (c *Config) BuildCatalogPath() string {
	return filepath.Join(c.DortaniaConfigPath, c.BuildCatalogFile)
}

func applyEnv(cfg *Config) error {
	// Optional: Build channel
	if v := os.Getenv("OCTOOL_BUILD_VERSION"); v != "" {
		cfg.BuildVersion = v
	}

	// Optional: Sync timeout
	if v := os.Getenv("OCTOOL_SYNC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OCTOOL_SYNC_TIMEOUT: %w", err)
		}
		cfg.SyncTimeout = d
	}

	// Optional: Validate timeout
	if v := os.Getenv("OCTOOL_VALIDATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OCTOOL_VALIDATE_TIMEOUT: %w", err)
		}
		cfg.ValidateTimeout = d
	}

	// Optional: Retries
	if v := os.Getenv("OCTOOL_SYNC_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OCTOOL_SYNC_RETRIES: %w", err)
		}
		cfg.SyncRetries = n
	}

	// Optional: Offline mode
	if v := os.Getenv("OCTOOL_OFFLINE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OCTOOL_OFFLINE: %w", err)
		}
		cfg.Offline = b
	}

	// Optional: Logging
	if v := os.Getenv("OCTOOL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OCTOOL_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}

	// Optional: plain token for private mirrors
	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")

	// Optional: GitHub App credentials, all or nothing
	appIDStr := os.Getenv("GITHUB_APP_ID")
	if appIDStr != "" {
		appID, err := strconv.ParseInt(appIDStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
		}
		cfg.GitHubAppID = appID

		// Private key can be provided as file path or direct value
		privateKeyPath := os.Getenv("GITHUB_APP_PRIVATE_KEY_PATH")
		privateKeyValue := os.Getenv("GITHUB_APP_PRIVATE_KEY")
		if privateKeyPath != "" {
			key, err := os.ReadFile(privateKeyPath)
			if err != nil {
				return fmt.Errorf("failed to read private key file: %w", err)
			}
			cfg.GitHubAppPrivateKey = key
		} else if privateKeyValue != "" {
			cfg.GitHubAppPrivateKey = []byte(privateKeyValue)
		} else {
			return errors.New("GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_PATH is required with GITHUB_APP_ID")
		}

		installIDStr := os.Getenv("GITHUB_INSTALLATION_ID")
		if installIDStr == "" {
			return errors.New("GITHUB_INSTALLATION_ID is required with GITHUB_APP_ID")
		}
		installID, err := strconv.ParseInt(installIDStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GITHUB_INSTALLATION_ID: %w", err)
		}
		cfg.GitHubInstallationID = installID
	}

	// Optional: OTLP endpoint for tracing
	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")

	return nil
}
