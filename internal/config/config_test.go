package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestNewConfig documents the defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default CrawlDepth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDepth != 1 {
			t.Errorf("expected CrawlDepth to be 1, got %d", cfg.CrawlDepth)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("same-origin filter is on", func(t *testing.T) {
		t.Parallel()
		if !cfg.SameOrigin {
			t.Error("expected SameOrigin to be true")
		}
	})

	t.Run("crawl is sequential and uncapped", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 1 {
			t.Errorf("expected Concurrency 1, got %d", cfg.Concurrency)
		}
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("default BlobKey", func(t *testing.T) {
		t.Parallel()
		if cfg.BlobKey != "confluence_scrapes/data.json" {
			t.Errorf("unexpected BlobKey %q", cfg.BlobKey)
		}
	})

	t.Run("history is saved under the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB || cfg.DBDir != XDGDataDir() {
			t.Errorf("expected SaveToDB in %q, got %v in %q", XDGDataDir(), cfg.SaveToDB, cfg.DBDir)
		}
	})
}

// TestConfigValidate tests Config.Validate.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.SeedURLs = []string{"https://wiki.example.com/display/DOC"}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}, wantErr: nil},
		{name: "depth zero", modify: func(c *Config) { c.CrawlDepth = 0 }, wantErr: nil},
		{name: "depth ten", modify: func(c *Config) { c.CrawlDepth = 10 }, wantErr: nil},
		{name: "no seeds", modify: func(c *Config) { c.SeedURLs = nil }, wantErr: ErrNoSeedURL},
		{name: "relative seed", modify: func(c *Config) { c.SeedURLs = []string{"/docs"} }, wantErr: ErrInvalidSeedURL},
		{name: "ftp seed", modify: func(c *Config) { c.SeedURLs = append(c.SeedURLs, "ftp://example.com/") }, wantErr: ErrInvalidSeedURL},
		{name: "negative depth", modify: func(c *Config) { c.CrawlDepth = -1 }, wantErr: ErrNegativeDepth},
		{name: "depth too large", modify: func(c *Config) { c.CrawlDepth = 11 }, wantErr: ErrDepthTooLarge},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "json and markdown", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, wantErr: ErrConflictingReportFormats},
		{name: "zero body size", modify: func(c *Config) { c.MaxBodySize = 0 }, wantErr: ErrInvalidMaxBodySize},
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -1 }, wantErr: ErrInvalidMaxPages},
		{name: "absolute blob key", modify: func(c *Config) { c.BlobDir, c.BlobKey = "out", "/etc/passwd" }, wantErr: ErrInvalidBlobKey},
		{name: "blob key ignored without blob dir", modify: func(c *Config) { c.BlobKey = "" }, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// TestFileGetSiteConfig tests the site/defaults merge.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Depth: intPtr(2), Headers: map[string]string{"Accept-Language": "en"}},
			Sites:    map[string]SiteConfig{},
		}

		got := cf.GetSiteConfig("wiki.example.com")
		if got.Depth == nil || *got.Depth != 2 {
			t.Errorf("expected default depth 2, got %v", got.Depth)
		}
		if got.Headers["Accept-Language"] != "en" {
			t.Errorf("expected default header, got %v", got.Headers)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{
				Depth:          intPtr(2),
				Cookie:         "a=1",
				Headers:        map[string]string{"Accept-Language": "en", "X-Team": "docs"},
				IgnorePatterns: []string{"/default/*"},
			},
			Sites: map[string]SiteConfig{
				"wiki.example.com": {
					Depth:          intPtr(0),
					SameOrigin:     boolPtr(false),
					Cookie:         "b=2",
					Headers:        map[string]string{"X-Team": "platform"},
					IgnorePatterns: []string{"/admin/*"},
				},
			},
		}

		got := cf.GetSiteConfig("wiki.example.com")
		if got.Depth == nil || *got.Depth != 0 {
			t.Errorf("expected explicit depth 0, got %v", got.Depth)
		}
		if got.SameOrigin == nil || *got.SameOrigin {
			t.Errorf("expected sameOrigin false, got %v", got.SameOrigin)
		}
		if got.Cookie != "b=2" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
		want := map[string]string{"Accept-Language": "en", "X-Team": "platform"}
		if !reflect.DeepEqual(got.Headers, want) {
			t.Errorf("expected headers %v, got %v", want, got.Headers)
		}
		if !reflect.DeepEqual(got.IgnorePatterns, []string{"/admin/*"}) {
			t.Errorf("expected site patterns, got %v", got.IgnorePatterns)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Headers: map[string]string{"A": "1"}},
			Sites: map[string]SiteConfig{
				"wiki.example.com": {Headers: map[string]string{"B": "2"}},
			},
		}

		_ = cf.GetSiteConfig("wiki.example.com")
		if _, ok := cf.Defaults.Headers["B"]; ok {
			t.Error("site headers leaked into defaults")
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		cf := &File{Defaults: SiteConfig{Cookie: "a=1"}}
		if got := cf.GetSiteConfig("wiki.example.com"); got.Cookie != "a=1" {
			t.Errorf("expected default cookie, got %q", got.Cookie)
		}
	})
}

// TestSiteConfigAllHeaders tests that the cookie becomes a header.
func TestSiteConfigAllHeaders(t *testing.T) {
	t.Parallel()

	sc := SiteConfig{Cookie: "JSESSIONID=1", Headers: map[string]string{"Authorization": "Bearer x"}}
	want := map[string]string{"Cookie": "JSESSIONID=1", "Authorization": "Bearer x"}
	if got := sc.AllHeaders(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestConfigForSeed tests merging of config file and global settings.
func TestConfigForSeed(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: SiteConfig{Headers: map[string]string{"Accept-Language": "en"}},
		Sites: map[string]SiteConfig{
			"wiki.example.com": {
				Depth:          intPtr(3),
				SameOrigin:     boolPtr(false),
				Cookie:         "session=file",
				Headers:        map[string]string{"Authorization": "Bearer file"},
				FollowPatterns: []string{"/display/*"},
			},
		},
	}

	t.Run("site settings apply to matching host", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SiteConfigs = file

		got := cfg.ForSeed("https://wiki.example.com/display/DOC")
		if got.Depth != 3 {
			t.Errorf("expected depth 3, got %d", got.Depth)
		}
		if got.SameOrigin {
			t.Error("expected same-origin disabled")
		}
		if got.Headers["Cookie"] != "session=file" || got.Headers["Accept-Language"] != "en" {
			t.Errorf("unexpected headers %v", got.Headers)
		}
		if !reflect.DeepEqual(got.FollowPatterns, []string{"/display/*"}) {
			t.Errorf("unexpected follow patterns %v", got.FollowPatterns)
		}
	})

	t.Run("command line values win", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SiteConfigs = file
		cfg.CrawlDepth = 0
		cfg.DepthExplicit = true
		cfg.Headers["Authorization"] = "Bearer flag"

		got := cfg.ForSeed("https://wiki.example.com/")
		if got.Depth != 0 {
			t.Errorf("expected explicit depth 0, got %d", got.Depth)
		}
		if got.Headers["Authorization"] != "Bearer flag" {
			t.Errorf("expected flag header, got %q", got.Headers["Authorization"])
		}
	})

	t.Run("other hosts use defaults only", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SiteConfigs = file

		got := cfg.ForSeed("https://docs.example.org/")
		if got.Depth != DefaultCrawlDepth || !got.SameOrigin {
			t.Errorf("unexpected settings %+v", got)
		}
		if _, ok := got.Headers["Cookie"]; ok {
			t.Error("cookie of another host must not be sent")
		}
	})

	t.Run("without config file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Headers["X-Team"] = "docs"

		got := cfg.ForSeed("https://wiki.example.com/")
		if !reflect.DeepEqual(got.Headers, map[string]string{"X-Team": "docs"}) {
			t.Errorf("unexpected headers %v", got.Headers)
		}
	})
}

// TestApplyEnv tests environment overrides.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	t.Run("applies all variables", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(env(map[string]string{
			EnvSeedURL: "https://wiki.example.com/",
			EnvDepth:   "3",
			EnvTimeout: "45",
			EnvBlobDir: "/tmp/blobs",
			EnvBlobKey: "space/data.json",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(cfg.SeedURLs, []string{"https://wiki.example.com/"}) {
			t.Errorf("unexpected seeds %v", cfg.SeedURLs)
		}
		if cfg.CrawlDepth != 3 || !cfg.DepthExplicit {
			t.Errorf("expected explicit depth 3, got %d (%v)", cfg.CrawlDepth, cfg.DepthExplicit)
		}
		if cfg.Timeout != 45*time.Second {
			t.Errorf("expected 45s, got %v", cfg.Timeout)
		}
		if cfg.BlobDir != "/tmp/blobs" || cfg.BlobKey != "space/data.json" {
			t.Errorf("unexpected blob settings %q %q", cfg.BlobDir, cfg.BlobKey)
		}
	})

	t.Run("duration timeout", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := cfg.ApplyEnv(env(map[string]string{EnvTimeout: "1m30s"})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Timeout != 90*time.Second {
			t.Errorf("expected 90s, got %v", cfg.Timeout)
		}
	})

	t.Run("seed from arguments wins", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SeedURLs = []string{"https://a.example.com/"}
		if err := cfg.ApplyEnv(env(map[string]string{EnvSeedURL: "https://b.example.com/"})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SeedURLs[0] != "https://a.example.com/" {
			t.Errorf("expected argument seed, got %v", cfg.SeedURLs)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(env(map[string]string{EnvDepth: "deep"}))
		if err == nil || !strings.Contains(err.Error(), EnvDepth) {
			t.Errorf("expected error naming %s, got %v", EnvDepth, err)
		}

		err = cfg.ApplyEnv(env(map[string]string{EnvTimeout: "soon"}))
		if err == nil || !strings.Contains(err.Error(), EnvTimeout) {
			t.Errorf("expected error naming %s, got %v", EnvTimeout, err)
		}
	})

	t.Run("empty environment changes nothing", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := cfg.ApplyEnv(env(nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(cfg, NewConfig()) {
			t.Error("expected defaults to be unchanged")
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.docscrape")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".docscrape")
		content := `defaults:
  depth: 2
  headers:
    Accept-Language: en
sites:
  wiki.example.com:
    depth: 0
    sameOrigin: false
    cookie: "JSESSIONID=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/display/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.Depth == nil || *cfg.Defaults.Depth != 2 {
			t.Errorf("expected default depth 2, got %v", cfg.Defaults.Depth)
		}

		site, ok := cfg.Sites["wiki.example.com"]
		if !ok {
			t.Fatal("expected wiki.example.com in sites")
		}
		if site.Depth == nil || *site.Depth != 0 {
			t.Errorf("expected explicit site depth 0, got %v", site.Depth)
		}
		if site.SameOrigin == nil || *site.SameOrigin {
			t.Errorf("expected sameOrigin false, got %v", site.SameOrigin)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Error("expected Authorization header")
		}
		if len(site.IgnorePatterns) != 1 || len(site.FollowPatterns) != 1 {
			t.Errorf("unexpected patterns %v %v", site.IgnorePatterns, site.FollowPatterns)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".docscrape")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".docscrape")
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
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

		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if filepath.Base(dir) != AppName {
			t.Errorf("expected %s dir to end with %q, got %q", name, AppName, dir)
		}
	}
}
