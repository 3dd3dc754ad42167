package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default ConnectTimeout is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.ConnectTimeout != 5*time.Second {
			t.Errorf("expected ConnectTimeout to be 5s, got %v", cfg.ConnectTimeout)
		}
	})

	t.Run("default Timeout is 15 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 15*time.Second {
			t.Errorf("expected Timeout to be 15s, got %v", cfg.Timeout)
		}
	})

	t.Run("default ProbeTimeout is disabled", func(t *testing.T) {
		t.Parallel()
		if cfg.ProbeTimeout != 0 {
			t.Errorf("expected ProbeTimeout to be 0, got %v", cfg.ProbeTimeout)
		}
	})

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("no transport override by default", func(t *testing.T) {
		t.Parallel()
		if cfg.UsesTor() {
			t.Error("expected direct connections by default")
		}
	})

	t.Run("default TorStartupTimeout is 3 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.TorStartupTimeout != 3*time.Minute {
			t.Errorf("expected TorStartupTimeout to be 3m, got %v", cfg.TorStartupTimeout)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com"}
		return cfg
	}

	testCases := []struct {
		name     string
		modify   func(c *Config)
		expected error
	}{
		{"valid config", func(*Config) {}, nil},
		{"multiple targets", func(c *Config) { c.Targets = append(c.Targets, "http://other.example") }, nil},
		{"empty targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"target without scheme", func(c *Config) { c.Targets = []string{"example.com"} }, ErrInvalidTarget},
		{"ftp target", func(c *Config) { c.Targets = []string{"ftp://example.com"} }, ErrInvalidTarget},
		{"target without host", func(c *Config) { c.Targets = []string{"http://"} }, ErrInvalidTarget},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative connect timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, ErrInvalidConnectTimeout},
		{"negative probe timeout", func(c *Config) { c.ProbeTimeout = -time.Second }, ErrInvalidProbeTimeout},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"json only", func(c *Config) { c.JSONReport = true }, nil},
		{"proxy and embedded tor", func(c *Config) { c.ProxyAddress, c.UseEmbeddedTor = "127.0.0.1:9050", true }, ErrConflictingTransports},
		{"negative max body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"negative skip recent", func(c *Config) { c.SkipRecent = -time.Hour }, ErrInvalidSkipRecent},
		{"skip recent without history", func(c *Config) { c.SkipRecent = time.Hour }, ErrSkipRecentWithoutHistory},
		{"skip recent with history", func(c *Config) { c.SkipRecent, c.SaveToDB = time.Hour, true }, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.modify(cfg)
			err := cfg.Validate()

			if tc.expected == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

// TestNormalizeTargets tests trailing slash and whitespace handling.
func TestNormalizeTargets(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Targets = []string{" https://example.com/ ", "http://a.example//", "", "   "}
	cfg.NormalizeTargets()

	expected := []string{"https://example.com", "http://a.example"}
	if len(cfg.Targets) != len(expected) {
		t.Fatalf("got %v, expected %v", cfg.Targets, expected)
	}
	for i := range expected {
		if cfg.Targets[i] != expected[i] {
			t.Errorf("target %d: got %q, expected %q", i, cfg.Targets[i], expected[i])
		}
	}
}

// TestFileGetSiteConfig tests merging of site and default settings.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Cookie: "default=1", Headers: map[string]string{"X-Default": "yes"}},
			Sites:    map[string]SiteConfig{},
		}

		sc := cf.GetSiteConfig("https://unknown.example")
		if sc.Cookie != "default=1" {
			t.Errorf("got cookie %q", sc.Cookie)
		}
		if sc.Headers["X-Default"] != "yes" {
			t.Errorf("got headers %v", sc.Headers)
		}
	})

	t.Run("matches host keys and merges headers", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "yes", "Authorization": "none"}},
			Sites: map[string]SiteConfig{
				"example.com": {Cookie: "session=abc", Headers: map[string]string{"Authorization": "Bearer t"}},
			},
		}

		sc := cf.GetSiteConfig("https://example.com")
		if sc.Cookie != "session=abc" {
			t.Errorf("got cookie %q", sc.Cookie)
		}
		if sc.Headers["Authorization"] != "Bearer t" {
			t.Errorf("expected site header to win, got %v", sc.Headers)
		}
		if sc.Headers["X-Default"] != "yes" {
			t.Errorf("expected default header to be kept, got %v", sc.Headers)
		}
	})

	t.Run("exact target key wins over host key", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Sites: map[string]SiteConfig{
				"example.com":         {Cookie: "host=1"},
				"https://example.com": {Cookie: "exact=1"},
			},
		}

		if sc := cf.GetSiteConfig("https://example.com"); sc.Cookie != "exact=1" {
			t.Errorf("got cookie %q", sc.Cookie)
		}
		if sc := cf.GetSiteConfig("http://example.com"); sc.Cookie != "host=1" {
			t.Errorf("got cookie %q", sc.Cookie)
		}
	})

	t.Run("host with port matches hostname key", func(t *testing.T) {
		t.Parallel()

		cf := &File{Sites: map[string]SiteConfig{"localhost": {Cookie: "local=1"}}}

		if sc := cf.GetSiteConfig("http://localhost:8080"); sc.Cookie != "local=1" {
			t.Errorf("got cookie %q", sc.Cookie)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "yes"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"X-Site": "1"}},
			},
		}

		_ = cf.GetSiteConfig("https://example.com")
		if _, ok := cf.Defaults.Headers["X-Site"]; ok {
			t.Error("site headers leaked into defaults")
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		cf := &File{Defaults: SiteConfig{Cookie: "d=1"}}
		if sc := cf.GetSiteConfig("https://example.com"); sc.Cookie != "d=1" {
			t.Errorf("got cookie %q", sc.Cookie)
		}
	})
}

// TestConfigSiteConfigFor tests the nil-file case.
func TestConfigSiteConfigFor(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	sc := cfg.SiteConfigFor("https://example.com")
	if sc.Cookie != "" || sc.Headers != nil {
		t.Errorf("expected zero site config, got %+v", sc)
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".iconscan")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.iconscan")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  cookie: "default=abc"
  headers:
    X-Scanner: iconscan
sites:
  example.com:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
`)

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Cookie != "default=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Defaults.Cookie)
		}
		if cfg.Defaults.Headers["X-Scanner"] != "iconscan" {
			t.Errorf("expected default header, got %v", cfg.Defaults.Headers)
		}
		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, `invalid: yaml: content: [}`))
		if !errors.Is(err, ErrInvalidConfigFile) {
			t.Errorf("expected ErrInvalidConfigFile, got %v", err)
		}
	})

	t.Run("rejects header values with line breaks", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, "sites:\n  example.com:\n    headers:\n      X-Bad: \"a\\r\\nInjected: 1\"\n"))
		if !errors.Is(err, ErrInvalidConfigFile) {
			t.Errorf("expected ErrInvalidConfigFile, got %v", err)
		}
	})

	t.Run("rejects invalid header names", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, "defaults:\n  headers:\n    \"Bad Name\": x\n"))
		if err == nil || !strings.Contains(err.Error(), "invalid header name") {
			t.Errorf("expected invalid header name error, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(writeConfig(t, "defaults:\n  cookie: a=b\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); dir == "" || filepath.Base(dir) != AppName {
		t.Errorf("unexpected data dir %q", dir)
	}
	if dir := XDGConfigDir(); dir == "" || filepath.Base(dir) != AppName {
		t.Errorf("unexpected config dir %q", dir)
	}
}
