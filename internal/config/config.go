// Package config resolves surello settings from defaults, an optional YAML
// file, a .env file and the environment. Command-line flags are applied on
// top by the cli package.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/raphaelgruber/surello/internal/db"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when SURELLO_CONFIG is unset.
const DefaultConfigFile = "surello.yaml"

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Loading
	DataDir        string
	FollowSymlinks bool
	FailFast       bool
	RecordFailures bool

	// Logging
	LogFile  string // empty means stderr only
	LogLevel slog.Level
}

// fileConfig mirrors surello.yaml. Pointer fields distinguish unset from false.
type fileConfig struct {
	SurrealDB struct {
		Address   string `yaml:"address"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	DataDir        string `yaml:"data_dir"`
	FollowSymlinks *bool  `yaml:"follow_symlinks"`
	FailFast       *bool  `yaml:"fail_fast"`
	RecordFailures *bool  `yaml:"record_failures"`
	Log            struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "surello",
		SurrealDBDatabase:  "surello",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",
		DataDir:            "surello_data",
		LogLevel:           slog.LevelInfo,
	}
}

// Load resolves configuration: defaults, then the YAML file, then the
// environment (including a .env file in the working directory).
// A missing default config file is not an error; a missing file named by
// a non-empty SURELLO_CONFIG is.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	path := os.Getenv("SURELLO_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.applyFile(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			slog.Debug("no config file", "path", path)
		} else {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFile overlays the non-empty values of a YAML config file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.SurrealDBURL, fc.SurrealDB.Address)
	setString(&c.SurrealDBNamespace, fc.SurrealDB.Namespace)
	setString(&c.SurrealDBDatabase, fc.SurrealDB.Database)
	setString(&c.SurrealDBUser, fc.SurrealDB.User)
	setString(&c.SurrealDBPass, fc.SurrealDB.Pass)
	setString(&c.SurrealDBAuthLevel, fc.SurrealDB.AuthLevel)
	setString(&c.DataDir, fc.DataDir)
	setString(&c.LogFile, fc.Log.File)
	setBool(&c.FollowSymlinks, fc.FollowSymlinks)
	setBool(&c.FailFast, fc.FailFast)
	setBool(&c.RecordFailures, fc.RecordFailures)
	if fc.Log.Level != "" {
		c.LogLevel = parseLogLevel(fc.Log.Level)
	}
	return nil
}

// applyEnv overlays environment variables.
func (c *Config) applyEnv() error {
	// SURREALDB_URL is accepted for compatibility with older deployments.
	c.SurrealDBURL = getEnv("SURREALDB_ADDRESS", getEnv("SURREALDB_URL", c.SurrealDBURL))
	c.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", c.SurrealDBNamespace)
	c.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", c.SurrealDBDatabase)
	c.SurrealDBUser = getEnv("SURREALDB_USER", c.SurrealDBUser)
	c.SurrealDBPass = getEnv("SURREALDB_PASS", c.SurrealDBPass)
	c.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", c.SurrealDBAuthLevel)

	c.DataDir = getEnv("SURELLO_DATA_DIR", c.DataDir)
	c.LogFile = getEnv("SURELLO_LOG_FILE", c.LogFile)
	if lvl := os.Getenv("SURELLO_LOG_LEVEL"); lvl != "" {
		c.LogLevel = parseLogLevel(lvl)
	}

	var err error
	if c.FollowSymlinks, err = getEnvBool("SURELLO_FOLLOW_SYMLINKS", c.FollowSymlinks); err != nil {
		return err
	}
	if c.FailFast, err = getEnvBool("SURELLO_FAIL_FAST", c.FailFast); err != nil {
		return err
	}
	if c.RecordFailures, err = getEnvBool("SURELLO_RECORD_FAILURES", c.RecordFailures); err != nil {
		return err
	}
	return nil
}

// DB returns the connection settings for the SurrealDB client.
func (c Config) DB() db.Config {
	return db.Config{
		URL:       c.SurrealDBURL,
		Namespace: c.SurrealDBNamespace,
		Database:  c.SurrealDBDatabase,
		Username:  c.SurrealDBUser,
		Password:  c.SurrealDBPass,
		AuthLevel: c.SurrealDBAuthLevel,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", key, val, err)
	}
	return b, nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setBool(dst *bool, val *bool) {
	if val != nil {
		*dst = *val
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
