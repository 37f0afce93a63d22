// Package config resolves client settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Environment keys.
const (
	KeyUID            = "CLOUD115_UID"
	KeyCID            = "CLOUD115_CID"
	KeySEID           = "CLOUD115_SEID"
	KeyKID            = "CLOUD115_KID"
	KeyUserAgent      = "CLOUD115_USER_AGENT"
	KeyAppVersion     = "CLOUD115_APP_VERSION"
	KeyBaseURL        = "CLOUD115_BASE_URL"
	KeyTimeoutSeconds = "CLOUD115_TIMEOUT_SECONDS"
	KeyRateLimit      = "CLOUD115_RATE_LIMIT"
	KeyConfigFile     = "CLOUD115_CONFIG"
	KeyLogLevel       = "LOG_LEVEL"
)

// DefaultConfigFile is read when present and KeyConfigFile is unset.
const DefaultConfigFile = "~/.config/cloud115.yaml"

// DefaultAppVersion is reported to the upload endpoints.
const DefaultAppVersion = "2.0.0.0"

// Config carries everything needed to log in and tune the session.
type Config struct {
	Credential Credential
	UserAgent  string
	AppVersion string
	// BaseURL redirects every request, for the sandbox.
	BaseURL string
	Timeout time.Duration
	// RateLimit is in requests per second; zero disables limiting.
	RateLimit float64
	LogLevel  string
}

// Credential holds the login cookies.
type Credential struct {
	UID  string
	CID  string
	SEID string
	KID  string
}

// Complete reports whether the mandatory cookies are present.
func (c Credential) Complete() bool {
	return c.UID != "" && c.CID != "" && c.SEID != ""
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Load reads the configuration once per process; later calls return the
// same Config. Commands use it so every part of one run sees one snapshot.
func Load() (*Config, error) {
	once.Do(func() {
		_ = godotenv.Load()
		instance, loadErr = Read(viper.New())
	})
	return instance, loadErr
}

// FromEnv loads .env and resolves a fresh Config on every call.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	return Read(viper.New())
}

// Read resolves a Config using v. Environment variables win over the YAML
// file, which wins over defaults.
func Read(v *viper.Viper) (*Config, error) {
	v.SetDefault(KeyAppVersion, DefaultAppVersion)
	v.SetDefault(KeyTimeoutSeconds, 30)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyConfigFile, DefaultConfigFile)
	v.AutomaticEnv()

	if err := readFile(v, v.GetString(KeyConfigFile)); err != nil {
		return nil, err
	}

	timeout := v.GetInt(KeyTimeoutSeconds)
	if timeout < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", KeyTimeoutSeconds)
	}
	rateLimit := v.GetFloat64(KeyRateLimit)
	if rateLimit < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", KeyRateLimit)
	}

	return &Config{
		Credential: Credential{
			UID:  strings.TrimSpace(v.GetString(KeyUID)),
			CID:  strings.TrimSpace(v.GetString(KeyCID)),
			SEID: strings.TrimSpace(v.GetString(KeySEID)),
			KID:  strings.TrimSpace(v.GetString(KeyKID)),
		},
		UserAgent:  v.GetString(KeyUserAgent),
		AppVersion: v.GetString(KeyAppVersion),
		BaseURL:    strings.TrimSpace(v.GetString(KeyBaseURL)),
		Timeout:    time.Duration(timeout) * time.Second,
		RateLimit:  rateLimit,
		LogLevel:   v.GetString(KeyLogLevel),
	}, nil
}

// readFile merges the YAML file at path. A missing default file is ignored.
func readFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("config: expand %s: %w", path, err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFile {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	v.SetConfigFile(expanded)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", expanded, err)
	}
	return nil
}
