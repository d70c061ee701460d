package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File names looked up under the home directory, in order.
const (
	YAMLFile = "signoff.yaml"
	TOMLFile = "signoff.toml"
)

const (
	DefaultAddr      = "127.0.0.1:5000"
	DefaultDBDriver  = "json"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the process configuration. Zero values fall back to defaults.
type Config struct {
	Addr      string `yaml:"addr" toml:"addr"`
	DBDriver  string `yaml:"db_driver" toml:"db_driver"`
	DBURL     string `yaml:"db_url" toml:"db_url"`
	DataDir   string `yaml:"data_dir" toml:"data_dir"`
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	OTel      bool   `yaml:"otel" toml:"otel"`
	TraceFile string `yaml:"trace_file" toml:"trace_file"`

	// Source is the config file that was read, empty if none.
	Source string `yaml:"-" toml:"-"`
}

// Default returns the built-in configuration for home.
func Default(home string) Config {
	return Config{
		Addr:      DefaultAddr,
		DBDriver:  DefaultDBDriver,
		DataDir:   filepath.Join(home, "data"),
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}

// Load builds the configuration for home: defaults, then the config file if present,
// then SIGNOFF_* environment overrides. Relative data_dir values resolve against home.
func Load(home string) (Config, error) {
	cfg := Default(home)
	path, err := findFile(home)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.Source = path
	}
	applyEnv(&cfg)
	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(home, cfg.DataDir)
	}
	return cfg, nil
}

func findFile(home string) (string, error) {
	for _, name := range []string{YAMLFile, TOMLFile} {
		p := filepath.Join(home, name)
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.HasSuffix(path, ".toml") {
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIGNOFF_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SIGNOFF_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBURL = v
	}
	if v := os.Getenv("SIGNOFF_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SIGNOFF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIGNOFF_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SIGNOFF_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SIGNOFF_OTEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OTel = b
		}
	}
	if v := os.Getenv("SIGNOFF_TRACE_FILE"); v != "" {
		cfg.TraceFile = v
	}
}

// LoadEnvFile sets KEY=VALUE lines from path into the process environment.
// Blank lines and lines starting with # are ignored.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key != "" {
			_ = os.Setenv(key, value)
		}
	}
	return sc.Err()
}
