// Package config holds the settings of a docscrape run: what to crawl, how
// to fetch, and where results go. Values come from defaults, an optional
// YAML file with per-site settings, DOCSCRAPE_* environment variables and
// command line flags, in increasing order of precedence.
package config
