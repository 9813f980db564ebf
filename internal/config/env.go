package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvSeedURL = "DOCSCRAPE_URL"
	EnvDepth   = "DOCSCRAPE_DEPTH"
	EnvTimeout = "DOCSCRAPE_TIMEOUT"
	EnvBlobDir = "DOCSCRAPE_BLOB_DIR"
	EnvBlobKey = "DOCSCRAPE_BLOB_KEY"
)

// ApplyEnv overrides fields from DOCSCRAPE_* environment variables.
// getenv is usually os.Getenv. Unset or empty variables are ignored.
// DOCSCRAPE_URL is used only when no seed was given otherwise.
// DOCSCRAPE_TIMEOUT accepts a duration ("45s") or whole seconds ("45").
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvSeedURL); v != "" && len(c.SeedURLs) == 0 {
		c.SeedURLs = []string{v}
	}

	if v := getenv(EnvDepth); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDepth, err)
		}
		c.CrawlDepth = depth
		c.DepthExplicit = true
	}

	if v := getenv(EnvTimeout); v != "" {
		timeout, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = timeout
	}

	if v := getenv(EnvBlobDir); v != "" {
		c.BlobDir = v
	}
	if v := getenv(EnvBlobKey); v != "" {
		c.BlobKey = v
	}

	return nil
}

func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
