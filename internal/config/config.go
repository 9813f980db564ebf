package config

import (
	"fmt"
	"maps"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "docscrape"

	// DefaultCrawlDepth follows the seed's links one level deep.
	DefaultCrawlDepth = 1

	// MaxCrawlDepth bounds the depth accepted from users.
	MaxCrawlDepth = 10

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency crawls sequentially, which keeps the tree order
	// reproducible.
	DefaultConcurrency = 1

	// DefaultBatchSize is the number of seeds crawled at the same time.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies docscrape in HTTP requests.
	DefaultUserAgent = "docscrape/1.0 (+https://github.com/nao1215/docscrape)"

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultBlobKey is where the page tree is stored under BlobDir.
	DefaultBlobKey = "confluence_scrapes/data.json"
)

// Config holds all options of a docscrape run. It is built from flags and
// passed down explicitly.
type Config struct {
	// SeedURLs are the pages crawls start from.
	SeedURLs []string

	// CrawlDepth is the maximum number of link hops from a seed.
	// 0 fetches only the seed.
	CrawlDepth int

	// DepthExplicit reports that CrawlDepth was set on the command line, so
	// a per-site depth from the config file does not replace it.
	DepthExplicit bool

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// SameOrigin restricts the crawl to URLs containing the seed origin.
	SameOrigin bool

	// Headers are sent with every request, e.g. Authorization for private
	// spaces. They take precedence over headers from the config file.
	Headers map[string]string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// MaxPages caps fetches per seed. 0 means no cap.
	MaxPages int

	// Concurrency is the number of requests in flight per seed.
	Concurrency int

	// BatchSize is the number of seeds crawled at the same time.
	BatchSize int

	// IgnorePatterns are URL path globs that are never followed.
	IgnorePatterns []string

	// FollowPatterns, when set, are the only URL path globs followed.
	FollowPatterns []string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool

	// LogFile, when set, receives the log output with rotation.
	LogFile string

	// JSONReport prints the page tree as JSON instead of the outline.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints a Markdown report instead of the outline.
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// DocumentsFile, when set, receives the flattened documents as JSON.
	DocumentsFile string

	// BlobDir, when set, is the directory the page tree is uploaded to.
	BlobDir string

	// BlobKey is the path of the uploaded tree relative to BlobDir.
	BlobKey string

	// DBDir is the directory of the SQLite crawl history.
	DBDir string

	// SaveToDB stores each run in the crawl history.
	SaveToDB bool

	// MetricsFile, when set, receives the crawl metrics at exit.
	MetricsFile string

	// ConfigFilePath is the path of the YAML config file. When empty,
	// FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		CrawlDepth:  DefaultCrawlDepth,
		Timeout:     DefaultTimeout,
		SameOrigin:  true,
		Headers:     make(map[string]string),
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Concurrency: DefaultConcurrency,
		BatchSize:   DefaultBatchSize,
		BlobKey:     DefaultBlobKey,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the data directory of docscrape, where the crawl
// history database lives.
// On Linux: ~/.local/share/docscrape
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory of docscrape.
// On Linux: ~/.config/docscrape
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.SeedURLs) == 0 {
		return ErrNoSeedURL
	}
	for _, seed := range c.SeedURLs {
		if err := ValidateSeedURL(seed); err != nil {
			return err
		}
	}

	if c.CrawlDepth < 0 {
		return ErrNegativeDepth
	}
	if c.CrawlDepth > MaxCrawlDepth {
		return ErrDepthTooLarge
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.BlobDir != "" && (c.BlobKey == "" || filepath.IsAbs(c.BlobKey)) {
		return ErrInvalidBlobKey
	}

	return nil
}

// ValidateSeedURL reports whether seed is an absolute http(s) URL with a host.
func ValidateSeedURL(seed string) error {
	u, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeedURL, seed)
	}
	return nil
}

// CrawlSettings are the effective crawl options for one seed.
type CrawlSettings struct {
	Depth          int
	SameOrigin     bool
	Headers        map[string]string
	IgnorePatterns []string
	FollowPatterns []string
}

// ForSeed returns the crawl settings for seed: the config file entry of the
// seed's host merged under the global settings.
func (c *Config) ForSeed(seed string) CrawlSettings {
	settings := CrawlSettings{
		Depth:          c.CrawlDepth,
		SameOrigin:     c.SameOrigin,
		Headers:        make(map[string]string),
		IgnorePatterns: c.IgnorePatterns,
		FollowPatterns: c.FollowPatterns,
	}

	if c.SiteConfigs != nil {
		host := ""
		if u, err := url.Parse(seed); err == nil {
			host = u.Host
		}
		site := c.SiteConfigs.GetSiteConfig(host)

		maps.Copy(settings.Headers, site.AllHeaders())
		if site.Depth != nil && !c.DepthExplicit {
			settings.Depth = *site.Depth
		}
		if site.SameOrigin != nil {
			settings.SameOrigin = *site.SameOrigin
		}
		if len(settings.IgnorePatterns) == 0 {
			settings.IgnorePatterns = site.IgnorePatterns
		}
		if len(settings.FollowPatterns) == 0 {
			settings.FollowPatterns = site.FollowPatterns
		}
	}

	maps.Copy(settings.Headers, c.Headers)
	return settings
}
