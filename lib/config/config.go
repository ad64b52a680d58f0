// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that points at the config
// file.
const EnvVar = "BREWKEEP_CONFIG"

// DefaultSearchPath is the PATH given to every child process.
const DefaultSearchPath = "/opt/homebrew/bin:/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin"

// Config is the complete brewkeep configuration.
type Config struct {
	Preferences  Preferences        `yaml:"preferences"`
	Paths        PathsConfig        `yaml:"paths"`
	Prompt       PromptConfig       `yaml:"prompt"`
	Output       OutputConfig       `yaml:"output"`
	Log          LogConfig          `yaml:"log"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	Notify       NotifyConfig       `yaml:"notify"`
	History      HistoryConfig      `yaml:"history"`
	Control      ControlConfig      `yaml:"control"`
}

// Preferences selects which optional steps a run includes.
type Preferences struct {
	// RunAppStore runs `mas outdated` and `mas upgrade`.
	RunAppStore bool `yaml:"run_app_store" json:"run_app_store,omitempty"`

	// RunCleanup runs `brew cleanup --prune=all` and reports the
	// disk space it freed.
	RunCleanup bool `yaml:"run_cleanup" json:"run_cleanup,omitempty"`

	// RunBrokenCaskCheck finds installed casks that `brew info`
	// rejects and disables them in ignored-casks.rb.
	RunBrokenCaskCheck bool `yaml:"run_broken_cask_check" json:"run_broken_cask_check,omitempty"`

	// DryRun passes --dry-run to the upgrade and suppresses the
	// forced re-upgrade of skipped packages.
	DryRun bool `yaml:"dry_run" json:"dry_run,omitempty"`

	// BackupBeforeUpgrade dumps a Brewfile before upgrading.
	BackupBeforeUpgrade bool `yaml:"backup_before_upgrade" json:"backup_before_upgrade,omitempty"`

	// GreedyUpgrade passes --greedy to the upgrade.
	GreedyUpgrade bool `yaml:"greedy_upgrade" json:"greedy_upgrade,omitempty"`

	// NotifyOnSuccess delivers a notification for successful runs.
	// Failures are always reported.
	NotifyOnSuccess bool `yaml:"notify_on_success" json:"notify_on_success,omitempty"`

	// PreScript and PostScript are shell snippets run before the
	// first and after the last step. Empty means no step.
	PreScript  string `yaml:"pre_script" json:"pre_script,omitempty"`
	PostScript string `yaml:"post_script" json:"post_script,omitempty"`
}

// PathsConfig locates executables and state.
type PathsConfig struct {
	// Brew and Mas are the package manager executables.
	Brew string `yaml:"brew"`
	Mas  string `yaml:"mas"`

	// Shell runs pre/post scripts and the Homebrew installer.
	Shell string `yaml:"shell"`

	// SearchPath replaces PATH in every child environment.
	SearchPath string `yaml:"search_path"`

	// PassEnv lists parent environment variables copied into child
	// environments. Everything else is dropped.
	PassEnv []string `yaml:"pass_env"`

	// State is the directory for brewkeep's own files.
	State string `yaml:"state"`

	// HomebrewConfig is where the Brewfile backup and
	// ignored-casks.rb are written.
	HomebrewConfig string `yaml:"homebrew_config"`

	// HomebrewInstallURL is the Homebrew install script fetched when
	// Brew does not exist.
	HomebrewInstallURL string `yaml:"homebrew_install_url"`

	// StepsFile optionally names a JSONC file of extra steps.
	StepsFile string `yaml:"steps_file"`
}

// PromptConfig controls interactive input detection.
type PromptConfig struct {
	// Patterns replaces the built-in prompt cues when non-empty.
	Patterns []PromptPattern `yaml:"patterns"`

	// Timeout is how long a prompt may remain unanswered, as a Go
	// duration. "0" waits forever.
	Timeout string `yaml:"timeout"`
}

// PromptPattern is one prompt cue.
type PromptPattern struct {
	Text          string `yaml:"text"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

// OutputConfig bounds the in-memory output buffer.
type OutputConfig struct {
	MaxLines int `yaml:"max_lines"`
}

// LogConfig configures the durable run log.
type LogConfig struct {
	File string `yaml:"file"`

	// MaxBytes rotates the log once it would exceed this size.
	MaxBytes int64 `yaml:"max_bytes"`

	// Keep is the number of rotated archives retained.
	Keep int `yaml:"keep"`

	// Compression is none, lz4, or zstd.
	Compression string `yaml:"compression"`

	// Level is the slog level for diagnostics: debug, info, warn,
	// or error.
	Level string `yaml:"level"`
}

// ConnectivityConfig configures the network check that precedes a
// run.
type ConnectivityConfig struct {
	Enabled bool `yaml:"enabled"`

	// Address is a host:port dialled over TCP.
	Address string `yaml:"address"`

	Timeout string `yaml:"timeout"`
}

// ScheduleConfig configures unattended runs in daemon mode. At most
// one of Interval and Cron may be set.
type ScheduleConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is a Go duration between runs, e.g. "24h".
	Interval string `yaml:"interval"`

	// Cron is a five-field cron expression in local time.
	Cron string `yaml:"cron"`
}

// NotifyConfig configures where run summaries are delivered.
type NotifyConfig struct {
	// Title prefixes every notification.
	Title string `yaml:"title"`

	// Command is an optional notification program. Each argument
	// may contain {title}, {message}, and {status} placeholders.
	Command []string `yaml:"command"`

	// SuppressUnchanged drops a successful notification identical
	// to the previous one, so scheduled runs that change nothing stay
	// quiet.
	SuppressUnchanged bool `yaml:"suppress_unchanged"`
}

// HistoryConfig configures the run archive.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	Database string `yaml:"database"`

	// Keep is the number of runs retained; older runs are pruned.
	Keep int `yaml:"keep"`
}

// ControlConfig configures the daemon's control socket.
type ControlConfig struct {
	Socket string `yaml:"socket"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Preferences: Preferences{
			RunAppStore:        true,
			RunCleanup:         true,
			RunBrokenCaskCheck: true,
			GreedyUpgrade:      true,
			NotifyOnSuccess:    true,
		},
		Paths: PathsConfig{
			Brew:               "/opt/homebrew/bin/brew",
			Mas:                "/opt/homebrew/bin/mas",
			Shell:              "/bin/bash",
			SearchPath:         DefaultSearchPath,
			PassEnv:            []string{"HOME", "USER", "LOGNAME", "LANG", "TMPDIR", "SHELL", "TERM"},
			State:              "${HOME}/.local/state/brewkeep",
			HomebrewConfig:     "${HOME}/.config/homebrew",
			HomebrewInstallURL: "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh",
		},
		Prompt: PromptConfig{
			Timeout: "10m",
		},
		Output: OutputConfig{
			MaxLines: 10000,
		},
		Log: LogConfig{
			File:        "${BREWKEEP_STATE}/brewkeep.log",
			MaxBytes:    10 << 20,
			Keep:        5,
			Compression: "zstd",
			Level:       "info",
		},
		Connectivity: ConnectivityConfig{
			Enabled: true,
			Address: "8.8.8.8:53",
			Timeout: "2s",
		},
		Schedule: ScheduleConfig{
			Interval: "24h",
		},
		Notify: NotifyConfig{
			Title:             "brewkeep",
			SuppressUnchanged: true,
		},
		History: HistoryConfig{
			Enabled:  true,
			Database: "${BREWKEEP_STATE}/history.db",
			Keep:     200,
		},
		Control: ControlConfig{
			Socket: "${BREWKEEP_STATE}/control.sock",
		},
	}
}

// Resolve loads the configuration named by flagPath, falling back to
// BREWKEEP_CONFIG, then to Default. The result is always expanded.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if envPath := os.Getenv(EnvVar); envPath != "" {
		return LoadFile(envPath)
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// Load loads the file named by BREWKEEP_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your brewkeep.yaml, or use --config", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, merged over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["BREWKEEP_STATE"] = c.Paths.State

	c.Paths.Brew = expandVars(c.Paths.Brew, vars)
	c.Paths.Mas = expandVars(c.Paths.Mas, vars)
	c.Paths.Shell = expandVars(c.Paths.Shell, vars)
	c.Paths.HomebrewConfig = expandVars(c.Paths.HomebrewConfig, vars)
	c.Paths.StepsFile = expandVars(c.Paths.StepsFile, vars)
	c.Log.File = expandVars(c.Log.File, vars)
	c.History.Database = expandVars(c.History.Database, vars)
	c.Control.Socket = expandVars(c.Control.Socket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Brew == "" {
		errs = append(errs, errors.New("paths.brew is required"))
	}
	if c.Paths.Shell == "" {
		errs = append(errs, errors.New("paths.shell is required"))
	}
	if c.Paths.SearchPath == "" {
		errs = append(errs, errors.New("paths.search_path is required"))
	}
	if c.Paths.State == "" {
		errs = append(errs, errors.New("paths.state is required"))
	}
	for index, pattern := range c.Prompt.Patterns {
		if pattern.Text == "" {
			errs = append(errs, fmt.Errorf("prompt.patterns[%d].text is empty", index))
		}
	}
	if _, err := c.PromptTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Output.MaxLines <= 0 {
		errs = append(errs, fmt.Errorf("output.max_lines must be positive, got %d", c.Output.MaxLines))
	}
	if c.Log.File == "" {
		errs = append(errs, errors.New("log.file is required"))
	}
	if c.Log.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("log.max_bytes must not be negative, got %d", c.Log.MaxBytes))
	}
	if !contains([]string{"none", "lz4", "zstd"}, c.Log.Compression) {
		errs = append(errs, fmt.Errorf("log.compression must be one of none, lz4, zstd; got %q", c.Log.Compression))
	}
	if !contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level))
	}
	if c.Connectivity.Enabled {
		if c.Connectivity.Address == "" {
			errs = append(errs, errors.New("connectivity.address is required when connectivity.enabled"))
		}
		if _, err := c.ConnectivityTimeout(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Schedule.Enabled {
		switch {
		case c.Schedule.Interval != "" && c.Schedule.Cron != "":
			errs = append(errs, errors.New("schedule.interval and schedule.cron are mutually exclusive"))
		case c.Schedule.Interval == "" && c.Schedule.Cron == "":
			errs = append(errs, errors.New("schedule.enabled requires schedule.interval or schedule.cron"))
		case c.Schedule.Interval != "":
			if interval, err := time.ParseDuration(c.Schedule.Interval); err != nil || interval < time.Minute {
				errs = append(errs, fmt.Errorf("schedule.interval must be a duration of at least 1m, got %q", c.Schedule.Interval))
			}
		}
	}
	if c.History.Enabled {
		if c.History.Database == "" {
			errs = append(errs, errors.New("history.database is required when history.enabled"))
		}
		if c.History.Keep <= 0 {
			errs = append(errs, fmt.Errorf("history.keep must be positive, got %d", c.History.Keep))
		}
	}
	if c.Control.Socket == "" {
		errs = append(errs, errors.New("control.socket is required"))
	}

	return errors.Join(errs...)
}

// PromptTimeout parses Prompt.Timeout. Zero means no timeout.
func (c *Config) PromptTimeout() (time.Duration, error) {
	return parseDuration("prompt.timeout", c.Prompt.Timeout)
}

// ConnectivityTimeout parses Connectivity.Timeout.
func (c *Config) ConnectivityTimeout() (time.Duration, error) {
	return parseDuration("connectivity.timeout", c.Connectivity.Timeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, value)
	}
	return duration, nil
}

// EnsurePaths creates the directories brewkeep writes into.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.State,
		filepath.Dir(c.Log.File),
		filepath.Dir(c.Control.Socket),
	}
	if c.History.Enabled {
		paths = append(paths, filepath.Dir(c.History.Database))
	}
	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// Environment builds the child process environment: the variables in
// PassEnv that getenv reports as set, plus PATH set to SearchPath.
func (p PathsConfig) Environment(getenv func(string) string) map[string]string {
	env := make(map[string]string, len(p.PassEnv)+1)
	for _, name := range p.PassEnv {
		if value := getenv(name); value != "" {
			env[name] = value
		}
	}
	env["PATH"] = p.SearchPath
	return env
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
