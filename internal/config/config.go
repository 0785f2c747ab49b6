package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel = "info"

	// DefaultLogMaxSizeMB and DefaultLogMaxFiles bound the rotating log file.
	DefaultLogMaxSizeMB = 10
	DefaultLogMaxFiles  = 5

	// LogFileStderr sends log output to the process stderr instead of a file.
	LogFileStderr = "stderr"
)

const (
	EnvHome         = "REGISTRY_HOME"
	EnvConfigPath   = "REGISTRY_CONFIG_PATH"
	EnvEnvFile      = "REGISTRY_ENV_FILE"
	EnvDataDir      = "REGISTRY_DATA_DIR"
	EnvLogLevel     = "REGISTRY_LOG_LEVEL"
	EnvLogFile      = "REGISTRY_LOG_FILE"
	EnvLogMaxSizeMB = "REGISTRY_LOG_MAX_SIZE_MB"
	EnvLogMaxFiles  = "REGISTRY_LOG_MAX_FILES"
)

var ErrInvalidConfig = errors.New("invalid config")

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// Rotation returns the size and backup limits for the log file. Zero means
// the default.
func (c LoggingConfig) Rotation() (maxSizeMB, maxFiles int) {
	maxSizeMB, maxFiles = c.MaxSizeMB, c.MaxFiles
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultLogMaxSizeMB
	}
	if maxFiles <= 0 {
		maxFiles = DefaultLogMaxFiles
	}
	return maxSizeMB, maxFiles
}

type LoadOptions struct {
	ConfigPath string
	EnvFile    string
	// Env stands in for the process environment; keys missing here fall
	// back to os.LookupEnv.
	Env   map[string]string
	Flags FlagOverrides
}

type FlagOverrides struct {
	DataDir  *string
	LogLevel *string
}

// LoadReport records where the effective configuration came from.
type LoadReport struct {
	ConfigPath       string   `json:"config_path"`
	ConfigFileLoaded bool     `json:"config_file_loaded"`
	EnvFile          string   `json:"env_file,omitempty"`
	EnvFileKeys      []string `json:"env_file_keys,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			MaxSizeMB: DefaultLogMaxSizeMB,
			MaxFiles:  DefaultLogMaxFiles,
		},
	}
}

// Load applies, in increasing precedence: defaults, the TOML file, the
// dotenv file, the environment and flags. An unset data directory and log
// file are then filled in from the platform defaults.
func Load(opts LoadOptions) (Config, LoadReport, error) {
	cfg := DefaultConfig()
	report := LoadReport{}

	env, err := newEnvironment(opts)
	if err != nil {
		return Config{}, report, err
	}
	report.EnvFile = env.dotenvPath
	report.EnvFileKeys = env.dotenvKeys()

	configPath, err := resolveConfigPath(opts, env)
	if err != nil {
		return Config{}, report, fmt.Errorf("resolve config path: %w", err)
	}
	report.ConfigPath = configPath

	loaded, err := loadAndApplyFile(configPath, &cfg)
	if err != nil {
		return Config{}, report, err
	}
	report.ConfigFileLoaded = loaded

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, report, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if err := resolveDefaults(&cfg, env); err != nil {
		return Config{}, report, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, report, err
	}
	return cfg, report, nil
}

type rawConfig struct {
	Storage *rawStorage `toml:"storage"`
	Logging *rawLogging `toml:"logging"`
}

type rawStorage struct {
	DataDir *string `toml:"data_dir"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config) (bool, error) {
	if path == "" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false, fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}
	applyRawConfig(cfg, raw)
	return true, nil
}

func applyRawConfig(cfg *Config, raw rawConfig) {
	if raw.Storage != nil {
		setString(raw.Storage.DataDir, &cfg.Storage.DataDir)
	}
	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}
}

func applyEnvOverrides(cfg *Config, env environment) error {
	if value, ok := env.lookup(EnvDataDir); ok {
		cfg.Storage.DataDir = value
	}
	if value, ok := env.lookup(EnvLogLevel); ok {
		cfg.Logging.Level = value
	}
	if value, ok := env.lookup(EnvLogFile); ok {
		cfg.Logging.File = value
	}
	if value, ok := env.lookup(EnvLogMaxSizeMB); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, EnvLogMaxSizeMB, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := env.lookup(EnvLogMaxFiles); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, EnvLogMaxFiles, err)
		}
		cfg.Logging.MaxFiles = parsed
	}
	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	setString(flags.DataDir, &cfg.Storage.DataDir)
	setString(flags.LogLevel, &cfg.Logging.Level)
}

func resolveDefaults(cfg *Config, env environment) error {
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		dir, err := defaultDataDir(env)
		if err != nil {
			return err
		}
		cfg.Storage.DataDir = dir
	}
	dir, err := expandHome(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	cfg.Storage.DataDir = filepath.Clean(dir)

	if strings.TrimSpace(cfg.Logging.File) == "" {
		cfg.Logging.File = filepath.Join(cfg.Storage.DataDir, "logs", "registry.log")
	} else if cfg.Logging.File != LogFileStderr {
		file, err := expandHome(cfg.Logging.File)
		if err != nil {
			return err
		}
		cfg.Logging.File = file
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	return nil
}

func validate(cfg Config) error {
	if _, ok := validLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error (got %q)", ErrInvalidConfig, cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("%w: logging.max_size_mb must be >= 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxFiles < 0 {
		return fmt.Errorf("%w: logging.max_files must be >= 0", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return fmt.Errorf("%w: storage.data_dir must not be empty", ErrInvalidConfig)
	}
	return nil
}

func setString(raw *string, target *string) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setInt(raw *int, target *int) {
	if raw == nil {
		return
	}
	*target = *raw
}

func resolveConfigPath(opts LoadOptions, env environment) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := env.lookup(EnvConfigPath); ok {
		return value, nil
	}
	return defaultConfigPath(env)
}

func defaultDataDir(env environment) (string, error) {
	if value, ok := env.lookup(EnvHome); ok && value != "" {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Registry"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := env.lookup("XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "registry"), nil
}

func defaultConfigPath(env environment) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Registry", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := env.lookup("XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "registry", "config.toml"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// environment layers the explicit map, the process environment and the
// dotenv file, highest precedence first.
type environment struct {
	explicit   map[string]string
	dotenv     map[string]string
	dotenvPath string
}

func newEnvironment(opts LoadOptions) (environment, error) {
	env := environment{explicit: opts.Env}

	path := opts.EnvFile
	if path == "" {
		path, _ = env.lookup(EnvEnvFile)
	}
	if path == "" {
		return env, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return env, fmt.Errorf("%w: read env file %q: %v", ErrInvalidConfig, path, err)
	}
	env.dotenv = values
	env.dotenvPath = path
	return env, nil
}

func (e environment) lookup(key string) (string, bool) {
	if e.explicit != nil {
		if value, ok := e.explicit[key]; ok {
			return value, true
		}
	}
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	if e.dotenv != nil {
		if value, ok := e.dotenv[key]; ok {
			return value, true
		}
	}
	return "", false
}

func (e environment) dotenvKeys() []string {
	if len(e.dotenv) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.dotenv))
	for key := range e.dotenv {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
