package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".iconscan"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFile is returned when the file parses but holds
	// values that cannot be sent as HTTP headers.
	ErrInvalidConfigFile = errors.New("invalid configuration file")
)

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}

	return &cf, nil
}

// validate rejects header names and values that would break a request.
func (cf *File) validate() error {
	check := func(scope string, sc SiteConfig) error {
		for name, value := range sc.Headers {
			if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " :\r\n") {
				return fmt.Errorf("%s: invalid header name %q", scope, name)
			}
			if strings.ContainsAny(value, "\r\n") {
				return fmt.Errorf("%s: header %s contains a line break", scope, name)
			}
		}
		if strings.ContainsAny(sc.Cookie, "\r\n") {
			return fmt.Errorf("%s: cookie contains a line break", scope)
		}
		return nil
	}

	if err := check("defaults", cf.Defaults); err != nil {
		return err
	}
	for site, sc := range cf.Sites {
		if err := check("sites."+site, sc); err != nil {
			return err
		}
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .iconscan in the current directory
// 3. Look for .iconscan in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), XDGConfigFile))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
