package config

import "maps"

// SiteConfig holds the settings for one host, e.g. credentials for a
// private wiki.
type SiteConfig struct {
	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	Depth *int `yaml:"depth,omitempty"`

	// SameOrigin overrides the global same-origin filter for this site.
	SameOrigin *bool `yaml:"sameOrigin,omitempty"`

	// IgnorePatterns are URL path globs to skip during crawling.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path globs to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// AllHeaders returns Headers plus the Cookie header when Cookie is set.
func (sc SiteConfig) AllHeaders() map[string]string {
	headers := make(map[string]string, len(sc.Headers)+1)
	maps.Copy(headers, sc.Headers)
	if sc.Cookie != "" {
		headers["Cookie"] = sc.Cookie
	}
	return headers
}

// File represents the structure of the .docscrape configuration file.
type File struct {
	// Sites maps a host (e.g. "wiki.example.com") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != nil {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.SameOrigin != nil {
		result.SameOrigin = siteConfig.SameOrigin
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}
