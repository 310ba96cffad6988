package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the settings bookshare needs to reach the lending API and
// keep its local state.
type Config struct {
	APIURL         string
	DataDir        string
	LogFile        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
}

const (
	defaultConfigPath     = "~/.config/bookshare/config.toml"
	defaultDataDir        = "~/.local/share/bookshare"
	defaultAPIURL         = "http://localhost:5005"
	defaultRequestTimeout = 5 * time.Second
	defaultPollInterval   = 15 * time.Second

	// EnvAPIURL overrides api_url from the config file.
	EnvAPIURL = "BOOKSHARE_API_URL"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Load locates and parses the bookshare config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL                string `toml:"api_url"`
		DataDir               string `toml:"data_dir"`
		LogFile               string `toml:"log_file"`
		RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
		PollSeconds           int    `toml:"poll_seconds"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
		cfg.LogFile = filepath.Join(cfg.DataDir, "bookshare.log")
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if raw.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeoutSeconds) * time.Second
	}
	if raw.PollSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.PollSeconds) * time.Second
	}
	applyEnv(&cfg)

	return cfg, nil
}

// CredentialPath returns the file holding the persisted bearer credential.
func (c Config) CredentialPath() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir + "/credentials.toml")
	}
	return filepath.Join(c.DataDir, "credentials.toml")
}

func defaults() Config {
	dataDir := mustExpand(defaultDataDir)
	return Config{
		APIURL:         defaultAPIURL,
		DataDir:        dataDir,
		LogFile:        filepath.Join(dataDir, "bookshare.log"),
		RequestTimeout: defaultRequestTimeout,
		PollInterval:   defaultPollInterval,
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
