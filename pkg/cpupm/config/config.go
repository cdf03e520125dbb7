package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// AutoConfig selects profiles by power source.
type AutoConfig struct {
	ACProfile      string `mapstructure:"ac_profile" yaml:"ac_profile"`
	BatteryProfile string `mapstructure:"battery_profile" yaml:"battery_profile"`
}

// HistoryConfig configures the apply journal.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// DaemonConfig configures cpupmd.
type DaemonConfig struct {
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path"`
	PIDPath    string `mapstructure:"pid_path" yaml:"pid_path"`
	SocketMode string `mapstructure:"socket_mode" yaml:"socket_mode"` // octal, e.g. "0660"
}

// Config represents the application configuration.
type Config struct {
	SysfsRoot      string        `mapstructure:"sysfs_root" yaml:"sysfs_root"`
	ProcfsRoot     string        `mapstructure:"procfs_root" yaml:"procfs_root"`
	DefaultProfile string        `mapstructure:"default_profile" yaml:"default_profile"`
	ProfilesPath   string        `mapstructure:"profiles_path" yaml:"profiles_path"`
	Auto           AutoConfig    `mapstructure:"auto" yaml:"auto"`
	History        HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging        LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Daemon         DaemonConfig  `mapstructure:"daemon" yaml:"daemon"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sysfs_root", DefaultSysfsRoot)
	v.SetDefault("procfs_root", DefaultProcfsRoot)
	v.SetDefault("default_profile", DefaultProfile)
	v.SetDefault("profiles_path", "") // Empty means <config dir>/profiles.toml

	v.SetDefault("auto.ac_profile", DefaultACProfile)
	v.SetDefault("auto.battery_profile", DefaultBatteryProfile)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means $XDG_DATA_HOME/cpupm/history
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"cpu":     "info",
		"profile": "info",
		"daemon":  "info",
		"watcher": "warn",
		"history": "info",
	})

	v.SetDefault("daemon.socket_path", "")
	v.SetDefault("daemon.pid_path", "")
	v.SetDefault("daemon.socket_mode", DefaultSocketMode)
}

// AddConfigPaths makes v search the standard locations for config.yaml.
func AddConfigPaths(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
}

// SetEnv enables CPUPM_ environment overrides on v
// (e.g. CPUPM_SYSFS_ROOT, CPUPM_AUTO_AC_PROFILE).
func SetEnv(v *viper.Viper) {
	v.SetEnvPrefix("CPUPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - path, when non-empty
//   - $XDG_CONFIG_HOME/cpupm/config.yaml
//   - $HOME/.config/cpupm/config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		AddConfigPaths(v)
	}
	SetEnv(v)
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals v and fills derived paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths() error {
	var err error
	if c.ProfilesPath == "" {
		c.ProfilesPath, err = DefaultProfilesPath()
		if err != nil {
			return err
		}
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath()
	}
	if c.Daemon.SocketPath == "" {
		c.Daemon.SocketPath = DefaultSocketPath()
	}
	if c.Daemon.PIDPath == "" {
		c.Daemon.PIDPath = DefaultPIDPath()
	}
	if c.Daemon.SocketMode == "" {
		c.Daemon.SocketMode = DefaultSocketMode
	}

	for _, p := range []*string{&c.ProfilesPath, &c.History.Path, &c.Logging.Path, &c.Daemon.SocketPath, &c.Daemon.PIDPath} {
		if *p, err = ExpandPath(*p); err != nil {
			return err
		}
	}
	return nil
}

// SocketFileMode parses Daemon.SocketMode.
func (c *Config) SocketFileMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(c.Daemon.SocketMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid daemon.socket_mode %q: %w", c.Daemon.SocketMode, err)
	}
	return os.FileMode(mode), nil
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() (logging.Config, error) {
	rotation := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		size, err := logging.ParseMaxSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, err
		}
		rotation.MaxSize = size
	}
	if c.Logging.Rotation.MaxAge > 0 {
		rotation.MaxAge = c.Logging.Rotation.MaxAge
	}
	if c.Logging.Rotation.MaxBackups > 0 {
		rotation.MaxBackups = c.Logging.Rotation.MaxBackups
	}
	rotation.Daily = c.Logging.Rotation.Daily

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rotation,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "cpupm"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "cpupm"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultProfilesPath returns <config dir>/profiles.toml.
func DefaultProfilesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# cpupm configuration

# Filesystem roots (change only for containers or testing)
sysfs_root: %s
procfs_root: %s

# Profile applied by "cpupm profile apply" without a name
default_profile: %s

# User profiles in TOML (empty means <config dir>/profiles.toml)
profiles_path: ""

# Profiles chosen by "cpupm auto"
auto:
  ac_profile: %s
  battery_profile: %s

# Journal of applied profiles with restorable snapshots
history:
  enabled: true
  # Empty means $XDG_DATA_HOME/cpupm/history
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/cpupm/cpupm.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    cpu: info
    profile: info
    daemon: info
    watcher: warn
    history: info

# cpupmd configuration
daemon:
  # Unix socket path (empty means %s/cpupmd.sock)
  socket_path: ""
  # PID file path (empty means %s/cpupmd.pid)
  pid_path: ""
  socket_mode: "%s"
`, DefaultSysfsRoot, DefaultProcfsRoot, DefaultProfile, DefaultACProfile, DefaultBatteryProfile,
		DefaultRetentionDays, DefaultRuntimeDir, DefaultRuntimeDir, DefaultSocketMode)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/cpupm/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "cpupm")
}

// DefaultHistoryPath returns the default history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultSocketPath returns the default Unix socket path.
func DefaultSocketPath() string {
	return filepath.Join(DefaultRuntimeDir, "cpupmd.sock")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DefaultRuntimeDir, "cpupmd.pid")
}
