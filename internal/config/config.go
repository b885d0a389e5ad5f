// Package config loads settings from flags, environment, config file and
// defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"solana-share-vault/internal/logging"
	"solana-share-vault/internal/solana"
)

// EnvPrefix prefixes every environment variable, e.g. VAULT_POSTGRES_DSN.
const EnvPrefix = "VAULT"

// DefaultProgramID is the program vault authorities are derived under.
const DefaultProgramID = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ProgramID string

	Storage       string
	PostgresDSN   string
	ClickhouseDSN string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	RPCEndpoint   string
	WSEndpoint    string
	RPCTimeout    time.Duration
	RPCMaxRetries int

	WatchFlushInterval time.Duration
	WatchBatchSize     int

	OutputDir string
	LogLevel  string
}

// Load merges config file, environment variables, and flags into Config.
// A .env file in the working directory seeds unset environment variables.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("program-id", DefaultProgramID)
	v.SetDefault("storage", StorageMemory)
	v.SetDefault("http-addr", ":8080")
	v.SetDefault("shutdown-timeout", 30*time.Second)
	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("rpc-max-retries", 3)
	v.SetDefault("watch-flush-interval", 2*time.Second)
	v.SetDefault("watch-batch-size", 100)
	v.SetDefault("output-dir", "output")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ProgramID:          v.GetString("program-id"),
		Storage:            strings.ToLower(v.GetString("storage")),
		PostgresDSN:        v.GetString("postgres-dsn"),
		ClickhouseDSN:      v.GetString("clickhouse-dsn"),
		HTTPAddr:           v.GetString("http-addr"),
		ShutdownTimeout:    v.GetDuration("shutdown-timeout"),
		RPCEndpoint:        v.GetString("rpc-endpoint"),
		WSEndpoint:         v.GetString("ws-endpoint"),
		RPCTimeout:         v.GetDuration("rpc-timeout"),
		RPCMaxRetries:      v.GetInt("rpc-max-retries"),
		WatchFlushInterval: v.GetDuration("watch-flush-interval"),
		WatchBatchSize:     v.GetInt("watch-batch-size"),
		OutputDir:          v.GetString("output-dir"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks settings shared by every command.
func (c Config) Validate() error {
	if _, err := solana.ParsePublicKey(c.ProgramID); err != nil {
		return fmt.Errorf("program-id: %w", err)
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required for %s storage", StoragePostgres)
		}
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	if c.RPCMaxRetries < 0 {
		return fmt.Errorf("rpc-max-retries must be >= 0")
	}
	return nil
}

// Program returns the parsed program ID. Call Validate first.
func (c Config) Program() solana.PublicKey {
	pk, _ := solana.ParsePublicKey(c.ProgramID)
	return pk
}
