package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the cipherkit configuration resolved from defaults, optional
// files, and environment overrides.
type Config struct {
	HTTPAddr   string       `yaml:"http_addr"`
	GRPCAddr   string       `yaml:"grpc_addr"`
	RecipesDir string       `yaml:"recipes_dir"`
	AuditLog   string       `yaml:"audit_log"`
	LogLevel   string       `yaml:"log_level"`
	LogFormat  string       `yaml:"log_format"`
	Bacon      BaconConfig  `yaml:"bacon"`
	Caesar     CaesarConfig `yaml:"caesar"`
	Update     UpdateConfig `yaml:"update"`
}

// UpdateConfig locates the signed release manifests used by cipherctl update.
type UpdateConfig struct {
	URL string `yaml:"url"`
	// PublicKey is the base64 ed25519 key that signs manifests.
	PublicKey string `yaml:"public_key"`
	Channel   string `yaml:"channel"`
}

// BaconConfig holds defaults for the Baconian operations.
type BaconConfig struct {
	Version int `yaml:"version"`
}

// CaesarConfig holds defaults for the Caesar operations.
type CaesarConfig struct {
	CaseSensitive       bool `yaml:"case_sensitive"`
	IncludeForeignChars bool `yaml:"include_foreign_chars"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:   "127.0.0.1:8480",
		GRPCAddr:   "127.0.0.1:50061",
		RecipesDir: "",
		AuditLog:   "",
		LogLevel:   "info",
		LogFormat:  "text",
		Bacon: BaconConfig{
			Version: 2,
		},
		Caesar: CaesarConfig{
			CaseSensitive:       true,
			IncludeForeignChars: true,
		},
		Update: UpdateConfig{
			Channel: "stable",
		},
	}
}

// Load resolves the configuration using defaults, configuration files, and
// environment overrides. Files are applied in this order, later ones
// overriding earlier ones:
//  1. ~/.cipherkit/config.yml
//  2. ./cipherkit.yml
//  3. the file named by CIPHERKIT_CONFIG
//
// Environment variables prefixed with CIPHERKIT_ have the highest precedence.
func Load() (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadFile(&cfg, filepath.Join(home, ".cipherkit", "config.yml"), false); err != nil {
			return Config{}, err
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("determine working directory: %w", err)
	}
	if err := loadFile(&cfg, filepath.Join(wd, "cipherkit.yml"), false); err != nil {
		return Config{}, err
	}

	if path := strings.TrimSpace(os.Getenv("CIPHERKIT_CONFIG")); path != "" {
		if err := loadFile(&cfg, path, true); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg. A missing file is an
// error only when required is set.
func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports settings the servers and operations cannot run with.
func (c Config) Validate() error {
	if c.Bacon.Version != 1 && c.Bacon.Version != 2 {
		return fmt.Errorf("bacon.version must be 1 or 2, got %d", c.Bacon.Version)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	switch c.Update.Channel {
	case "stable", "beta":
	default:
		return fmt.Errorf("update.channel must be stable or beta, got %q", c.Update.Channel)
	}
	return nil
}

// SlogLevel returns the log level as a slog.Level, falling back to info.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the process logger described by the configuration.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OperationDefaults returns the configured parameter defaults for the named
// built-in operation. Operations without configurable defaults get nil.
func (c Config) OperationDefaults(op string) map[string]any {
	switch {
	case strings.HasPrefix(op, "caesar_"), op == "rot13":
		return map[string]any{
			"case_sensitive":        c.Caesar.CaseSensitive,
			"include_foreign_chars": c.Caesar.IncludeForeignChars,
		}
	case strings.HasPrefix(op, "bacon_"):
		return map[string]any{"version": c.Bacon.Version}
	default:
		return nil
	}
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

type fileConfig struct {
	HTTPAddr   *string           `yaml:"http_addr"`
	GRPCAddr   *string           `yaml:"grpc_addr"`
	RecipesDir *string           `yaml:"recipes_dir"`
	AuditLog   *string           `yaml:"audit_log"`
	LogLevel   *string           `yaml:"log_level"`
	LogFormat  *string           `yaml:"log_format"`
	Bacon      *fileBaconConfig  `yaml:"bacon"`
	Caesar     *fileCaesarConfig `yaml:"caesar"`
	Update     *fileUpdateConfig `yaml:"update"`
}

type fileUpdateConfig struct {
	URL       *string `yaml:"url"`
	PublicKey *string `yaml:"public_key"`
	Channel   *string `yaml:"channel"`
}

type fileBaconConfig struct {
	Version *int `yaml:"version"`
}

type fileCaesarConfig struct {
	CaseSensitive       *bool `yaml:"case_sensitive"`
	IncludeForeignChars *bool `yaml:"include_foreign_chars"`
}

func applyFileConfig(cfg *Config, data []byte) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.RecipesDir, fc.RecipesDir)
	setString(&cfg.AuditLog, fc.AuditLog)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.Bacon != nil && fc.Bacon.Version != nil {
		cfg.Bacon.Version = *fc.Bacon.Version
	}
	if fc.Caesar != nil {
		if fc.Caesar.CaseSensitive != nil {
			cfg.Caesar.CaseSensitive = *fc.Caesar.CaseSensitive
		}
		if fc.Caesar.IncludeForeignChars != nil {
			cfg.Caesar.IncludeForeignChars = *fc.Caesar.IncludeForeignChars
		}
	}
	if fc.Update != nil {
		setString(&cfg.Update.URL, fc.Update.URL)
		setString(&cfg.Update.PublicKey, fc.Update.PublicKey)
		setString(&cfg.Update.Channel, fc.Update.Channel)
	}
	return nil
}

func setString(dst *string, val *string) {
	if val != nil {
		*dst = strings.TrimSpace(*val)
	}
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"CIPHERKIT_HTTP_ADDR":   &cfg.HTTPAddr,
		"CIPHERKIT_GRPC_ADDR":   &cfg.GRPCAddr,
		"CIPHERKIT_RECIPES_DIR": &cfg.RecipesDir,
		"CIPHERKIT_AUDIT_LOG":   &cfg.AuditLog,
		"CIPHERKIT_LOG_LEVEL":   &cfg.LogLevel,
		"CIPHERKIT_LOG_FORMAT":  &cfg.LogFormat,

		"CIPHERKIT_UPDATE_URL":        &cfg.Update.URL,
		"CIPHERKIT_UPDATE_PUBLIC_KEY": &cfg.Update.PublicKey,
		"CIPHERKIT_UPDATE_CHANNEL":    &cfg.Update.Channel,
	}
	for key, dst := range strs {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			*dst = val
		}
	}

	if val := strings.TrimSpace(os.Getenv("CIPHERKIT_BACON_VERSION")); val != "" {
		v, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("CIPHERKIT_BACON_VERSION: %w", err)
		}
		cfg.Bacon.Version = v
	}

	bools := map[string]*bool{
		"CIPHERKIT_CAESAR_CASE_SENSITIVE":        &cfg.Caesar.CaseSensitive,
		"CIPHERKIT_CAESAR_INCLUDE_FOREIGN_CHARS": &cfg.Caesar.IncludeForeignChars,
	}
	for key, dst := range bools {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			parsed, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = parsed
		}
	}
	return nil
}
