// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Environment variables overriding the configuration file.
const (
	EnvConfigFile   = "IAC_RULES_CONFIG"
	EnvCacheDir     = "IAC_RULES_CACHE_DIR"
	EnvRegistryURL  = "IAC_RULES_REGISTRY_URL"
	EnvUsername     = "IAC_RULES_REGISTRY_USERNAME"
	EnvPassword     = "IAC_RULES_REGISTRY_PASSWORD"
	EnvPlainHTTP    = "IAC_RULES_PLAIN_HTTP"
	EnvEntitlements = "IAC_RULES_ENTITLEMENTS"
)

// Config holds the settings shared by all commands.
type Config struct {
	// CacheDir is the local policy engine directory the bundle is written to.
	CacheDir    string `yaml:"cacheDir"`
	RegistryURL string `yaml:"registryURL"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PlainHTTP   bool   `yaml:"plainHTTP"`
	// Entitlements granted to the account. Nil means entitlements are not enforced.
	Entitlements Entitlements `yaml:"entitlements"`
}

// Entitlements is a static set of granted entitlements.
type Entitlements []string

// Entitled reports whether name was granted.
func (e Entitlements) Entitled(_ context.Context, name string) (bool, error) {
	return slices.Contains(e, name), nil
}

// Load reads the configuration file, then applies environment overrides and defaults.
// A missing configuration file is not an error.
func Load() (*Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit configuration file path.
func LoadFile(path string) (*Config, error) {
	c := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if c.CacheDir == "" {
		dir, err := defaultCacheDir()
		if err != nil {
			return nil, err
		}
		c.CacheDir = dir
	}

	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv(EnvRegistryURL); v != "" {
		c.RegistryURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvPlainHTTP); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", v, EnvPlainHTTP, err)
		}
		c.PlainHTTP = b
	}
	if v, ok := os.LookupEnv(EnvEntitlements); ok {
		c.Entitlements = Entitlements{}
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				c.Entitlements = append(c.Entitlements, e)
			}
		}
	}
	return nil
}

// resolveConfigPath returns the configuration file path.
// It checks IAC_RULES_CONFIG env var first, then falls back to default.
func resolveConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "iac-rules", "config.yaml"), nil
}

func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "iac-rules"), nil
}
