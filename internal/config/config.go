// Package config provides functionality for managing configuration options
// for the client using command-line flags, a config file and environment
// variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GOPHSHOP"

// Options holds the configuration values for the client.
type Options struct {
	// URL is the storefront API origin.
	URL string

	// DatabaseDSN selects the PostgreSQL credential store when not empty.
	DatabaseDSN string

	// Config is the path to the config file.
	Config string

	// CAFile is an extra CA bundle trusted for TLS to the API.
	CAFile string

	// TokenFile is where the file credential store keeps the session.
	TokenFile string

	// KeyFile, when set, seals the stored credential with a key derived from it.
	KeyFile string

	// Timeout bounds every API call.
	Timeout time.Duration

	// LogLevel is the zap level name.
	LogLevel string

	// CleanupInterval and CredentialRetention drive the stale credential
	// cleaner of the PostgreSQL store.
	CleanupInterval     time.Duration
	CredentialRetention time.Duration

	// ShowVersion prints build information and exits.
	ShowVersion bool
}

// flag name -> viper key
var flagKeys = map[string]string{
	"url":        "url",
	"d":          "database_dsn",
	"ca":         "ca_file",
	"token-file": "token_file",
	"key-file":   "key_file",
	"timeout":    "timeout",
	"log-level":  "log_level",
}

func defaults(v *viper.Viper) {
	v.SetDefault("url", "http://localhost:8000")
	v.SetDefault("database_dsn", "")
	v.SetDefault("ca_file", "")
	v.SetDefault("token_file", "session.json")
	v.SetDefault("key_file", "")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("log_level", "warn")
	v.SetDefault("cleanup_interval", time.Hour)
	v.SetDefault("credential_retention", 30*24*time.Hour)
}

// Load builds Options from args (without the program name). Explicit flags
// win over environment variables, which win over the config file, which
// wins over defaults. A missing config file is not an error.
func Load(args []string) (*Options, error) {
	fs := flag.NewFlagSet("gophshop", flag.ContinueOnError)
	var (
		configPath  string
		showVersion bool
	)
	fs.StringVar(&configPath, "config", "config.json", "path to config file")
	fs.StringVar(&configPath, "c", "config.json", "path to config file (shorthand)")
	fs.BoolVar(&showVersion, "version", false, "show build version and date")
	// Values of these flags are read back through fs.Visit so that only
	// explicitly set flags override the other sources.
	fs.String("url", "http://localhost:8000", "storefront API base URL")
	fs.String("d", "", "PostgreSQL DSN for the shared credential store")
	fs.String("ca", "", "path to an extra CA certificate")
	fs.String("token-file", "session.json", "path to the session file")
	fs.String("key-file", "", "path to a key file sealing the session file")
	fs.Duration("timeout", 10*time.Second, "per-request timeout")
	fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	configSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || f.Name == "c" {
			configSet = true
		}
	})
	if !configSet {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			configPath = env
		}
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
		} else if configSet && errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	opts := &Options{
		URL:                 strings.TrimRight(v.GetString("url"), "/"),
		DatabaseDSN:         v.GetString("database_dsn"),
		Config:              configPath,
		CAFile:              v.GetString("ca_file"),
		TokenFile:           v.GetString("token_file"),
		KeyFile:             v.GetString("key_file"),
		Timeout:             v.GetDuration("timeout"),
		LogLevel:            v.GetString("log_level"),
		CleanupInterval:     v.GetDuration("cleanup_interval"),
		CredentialRetention: v.GetDuration("credential_retention"),
		ShowVersion:         showVersion,
	}
	if opts.URL == "" {
		return nil, errors.New("storefront URL must not be empty")
	}
	if opts.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", opts.Timeout)
	}
	if opts.CleanupInterval <= 0 {
		return nil, fmt.Errorf("cleanup interval must be positive, got %s", opts.CleanupInterval)
	}
	if opts.CredentialRetention <= 0 {
		return nil, fmt.Errorf("credential retention must be positive, got %s", opts.CredentialRetention)
	}
	return opts, nil
}

// Parse loads Options from the process arguments and exits on error.
func Parse() *Options {
	opts, err := Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("error while loading config: %v", err)
	}
	return opts
}
