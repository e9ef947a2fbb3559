// Package config handles configuration loading for planvet. It supports XDG
// config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for planvet.
type Config struct {
	Paths       PathsConfig       `mapstructure:"paths"`
	Defaults    DefaultsConfig    `mapstructure:"defaults"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Index       IndexConfig       `mapstructure:"index"`
	Rules       RulesPathConfig   `mapstructure:"rules"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tickets     TicketsConfig     `mapstructure:"tickets"`
	Debug       DebugConfig       `mapstructure:"debug"`

	// root is the project root the workspace paths resolve against.
	root string
}

// PathsConfig holds workspace layout settings. Relative entries resolve
// against the workspace directory; absolute entries are used as-is.
type PathsConfig struct {
	// Workspace is the engine's directory, relative to the project root.
	Workspace string `mapstructure:"workspace"`
	// Plans holds one subdirectory of planning artifacts per feature.
	Plans string `mapstructure:"plans"`
	// Sessions holds one validation-session file per feature.
	Sessions string `mapstructure:"sessions"`
	// IndexFile is the governance index cache location.
	IndexFile string `mapstructure:"index_file"`
}

// DefaultsConfig holds per-run default values.
type DefaultsConfig struct {
	// MaxIterations bounds the validate-fix loop for a new session.
	MaxIterations int `mapstructure:"max_iterations"`
	// Strict treats a WARNINGS outcome as requiring another iteration.
	Strict bool `mapstructure:"strict"`
}

// TimeoutsConfig holds deadlines for the engine's blocking operations.
type TimeoutsConfig struct {
	// FileIO bounds a single artifact load or checksum read.
	FileIO time.Duration `mapstructure:"file_io"`
	// Lock bounds acquisition of a feature's session lock.
	Lock time.Duration `mapstructure:"lock"`
}

// ConcurrencyConfig holds worker pool settings.
type ConcurrencyConfig struct {
	// PairWorkers caps the goroutines running pairwise coherence checks.
	PairWorkers int `mapstructure:"pair_workers"`
}

// IndexConfig holds governance index settings.
type IndexConfig struct {
	// Constitution is the root governance file, relative to the project
	// root.
	Constitution string `mapstructure:"constitution"`
	// RulesDir holds always-loaded rule documents, relative to the
	// workspace.
	RulesDir string `mapstructure:"rules_dir"`
	// DocsDir holds on-demand documents, relative to the workspace.
	DocsDir string `mapstructure:"docs_dir"`
	// Required lists governance files that must exist for an index build
	// to succeed, relative to the project root.
	Required []string `mapstructure:"required"`
	// SizeLimits caps file sizes per category, in bytes. Zero means
	// unlimited.
	SizeLimits SizeLimitsConfig `mapstructure:"size_limits"`
}

// SizeLimitsConfig holds per-category size caps for indexed files. The
// json tags cover its appearance inside the persisted index.
type SizeLimitsConfig struct {
	AutoLoaded   int64 `mapstructure:"auto_loaded" json:"auto_loaded"`
	PathSpecific int64 `mapstructure:"path_specific" json:"path_specific"`
	OnDemand     int64 `mapstructure:"on_demand" json:"on_demand"`
}

// RulesPathConfig points at the coherence policy file.
type RulesPathConfig struct {
	// Path is the rules file location, relative to the workspace.
	Path string `mapstructure:"path"`
}

// MetricsConfig holds metrics sink settings.
type MetricsConfig struct {
	// Enabled turns run recording on.
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite database location, relative to the workspace.
	Path string `mapstructure:"path"`
}

// TicketsConfig holds escalation ticket sink settings.
type TicketsConfig struct {
	// Enabled turns escalation ticket files on.
	Enabled bool `mapstructure:"enabled"`
	// Dir is the ticket directory, relative to the workspace.
	Dir string `mapstructure:"dir"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// LogDir enables file debug logging when non-empty, relative to the
	// workspace.
	LogDir string `mapstructure:"log_dir"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (PLANVET_*)
// 2. Project config (.planvet.yaml in current directory or a parent)
// 3. User config (~/.config/planvet/config.yaml)
// 4. Built-in defaults
// The project root is the directory containing .planvet.yaml when one is
// found, the current directory otherwise.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		root = filepath.Dir(projectConfig)
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("")

	v.BindEnv("paths.workspace", "PLANVET_WORKSPACE")
	v.BindEnv("debug.log_dir", "PLANVET_DEBUG_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.root = root

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file, rooting the
// workspace at the file's directory (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.root = filepath.Dir(abs)

	return cfg, nil
}

// Default returns a Config with default values rooted at the current
// directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return DefaultAt(cwd)
}

// DefaultAt returns a Config with default values rooted at the given
// directory.
func DefaultAt(root string) *Config {
	return &Config{
		Paths: PathsConfig{
			Workspace: ".planvet",
			Plans:     "plans",
			Sessions:  "sessions",
			IndexFile: "cache/governance_index.json",
		},
		Defaults: DefaultsConfig{
			MaxIterations: 3,
			Strict:        false,
		},
		Timeouts: TimeoutsConfig{
			FileIO: 5 * time.Second,
			Lock:   10 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			PairWorkers: 4,
		},
		Index: IndexConfig{
			Constitution: "PLANVET.md",
			RulesDir:     "rules",
			DocsDir:      "docs",
			Required:     []string{"PLANVET.md"},
			SizeLimits: SizeLimitsConfig{
				AutoLoaded:   32768,
				PathSpecific: 49152,
				OnDemand:     0,
			},
		},
		Rules: RulesPathConfig{
			Path: "rules.yaml",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "cache/metrics.db",
		},
		Tickets: TicketsConfig{
			Enabled: true,
			Dir:     "tickets",
		},
		Debug: DebugConfig{
			LogDir: "",
		},
		root: root,
	}
}

// SetRoot overrides the project root (used by the --dir flag).
func (c *Config) SetRoot(root string) {
	c.root = root
}

// Root returns the project root directory.
func (c *Config) Root() string {
	if c.root == "" {
		return "."
	}
	return c.root
}

// WorkspaceDir returns the engine's workspace directory.
func (c *Config) WorkspaceDir() string {
	return c.resolveFromRoot(c.Paths.Workspace)
}

// PlansDir returns the directory holding per-feature artifact sets.
func (c *Config) PlansDir() string {
	return c.resolve(c.Paths.Plans)
}

// FeatureDir returns the artifact directory for one feature.
func (c *Config) FeatureDir(featureID string) string {
	return filepath.Join(c.PlansDir(), featureID)
}

// SessionsDir returns the directory holding validation-session files.
func (c *Config) SessionsDir() string {
	return c.resolve(c.Paths.Sessions)
}

// IndexPath returns the governance index cache location.
func (c *Config) IndexPath() string {
	return c.resolve(c.Paths.IndexFile)
}

// RulesPath returns the coherence policy file location.
func (c *Config) RulesPath() string {
	return c.resolve(c.Rules.Path)
}

// ConstitutionPath returns the root governance file location.
func (c *Config) ConstitutionPath() string {
	return c.resolveFromRoot(c.Index.Constitution)
}

// RulesDirPath returns the always-loaded rule documents directory.
func (c *Config) RulesDirPath() string {
	return c.resolve(c.Index.RulesDir)
}

// DocsDirPath returns the on-demand documents directory.
func (c *Config) DocsDirPath() string {
	return c.resolve(c.Index.DocsDir)
}

// RequiredPaths returns the declared-required governance files as absolute
// paths.
func (c *Config) RequiredPaths() []string {
	out := make([]string, 0, len(c.Index.Required))
	for _, p := range c.Index.Required {
		out = append(out, c.resolveFromRoot(p))
	}
	return out
}

// MetricsPath returns the metrics database location.
func (c *Config) MetricsPath() string {
	return c.resolve(c.Metrics.Path)
}

// TicketsDir returns the escalation ticket directory.
func (c *Config) TicketsDir() string {
	return c.resolve(c.Tickets.Dir)
}

// DebugLogDir returns the debug log directory, empty when disabled.
func (c *Config) DebugLogDir() string {
	if c.Debug.LogDir == "" {
		return ""
	}
	return c.resolve(c.Debug.LogDir)
}

// resolve joins a workspace-relative path; absolute paths pass through.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkspaceDir(), p)
}

// resolveFromRoot joins a root-relative path; absolute paths pass through.
func (c *Config) resolveFromRoot(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root(), p)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Workspace layout defaults
	v.SetDefault("paths.workspace", ".planvet")
	v.SetDefault("paths.plans", "plans")
	v.SetDefault("paths.sessions", "sessions")
	v.SetDefault("paths.index_file", "cache/governance_index.json")

	// Iteration defaults
	v.SetDefault("defaults.max_iterations", 3)
	v.SetDefault("defaults.strict", false)

	// Timeout defaults
	v.SetDefault("timeouts.file_io", "5s")
	v.SetDefault("timeouts.lock", "10s")

	// Concurrency defaults
	v.SetDefault("concurrency.pair_workers", 4)

	// Governance index defaults
	v.SetDefault("index.constitution", "PLANVET.md")
	v.SetDefault("index.rules_dir", "rules")
	v.SetDefault("index.docs_dir", "docs")
	v.SetDefault("index.required", []string{"PLANVET.md"})
	v.SetDefault("index.size_limits.auto_loaded", 32768)
	v.SetDefault("index.size_limits.path_specific", 49152)
	v.SetDefault("index.size_limits.on_demand", 0)

	// Coherence rules defaults
	v.SetDefault("rules.path", "rules.yaml")

	// Sink defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "cache/metrics.db")
	v.SetDefault("tickets.enabled", true)
	v.SetDefault("tickets.dir", "tickets")

	// Debug defaults
	v.SetDefault("debug.log_dir", "")
}

// getUserConfigDir returns the XDG config directory for planvet.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "planvet")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "planvet")
	}
	return filepath.Join(home, ".config", "planvet")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// findProjectConfig searches for .planvet.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".planvet.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
