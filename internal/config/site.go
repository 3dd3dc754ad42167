package config

import (
	"maps"
	"net/url"
	"strings"
)

// SiteConfig holds request settings for a single site.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to this site.
	// They override the default browser headers.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .iconscan configuration file.
type File struct {
	// Sites maps a site to its configuration. A key is either a full
	// target URL ("https://example.com") or a bare host ("example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for target, merged over the
// defaults. An exact target key wins over a host key.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	result := SiteConfig{
		Cookie:  cf.Defaults.Cookie,
		Headers: maps.Clone(cf.Defaults.Headers),
	}

	siteConfig, ok := cf.lookup(target)
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	return result
}

// lookup finds the site entry for target.
func (cf *File) lookup(target string) (SiteConfig, bool) {
	if sc, ok := cf.Sites[target]; ok {
		return sc, true
	}
	if sc, ok := cf.Sites[strings.TrimRight(target, "/")]; ok {
		return sc, true
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return SiteConfig{}, false
	}
	if sc, ok := cf.Sites[u.Host]; ok {
		return sc, true
	}
	sc, ok := cf.Sites[u.Hostname()]
	return sc, ok
}
