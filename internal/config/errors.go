package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeedURL is returned when no seed URL is given.
	ErrNoSeedURL = errors.New("no seed URL specified: provide at least one URL to crawl")

	// ErrInvalidSeedURL is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrNegativeDepth is returned when the crawl depth is below zero.
	ErrNegativeDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrDepthTooLarge is returned when the crawl depth exceeds MaxCrawlDepth.
	ErrDepthTooLarge = errors.New("invalid crawl depth: must be at most 10")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// 0 disables the cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidBlobKey is returned when the blob key is empty or absolute.
	ErrInvalidBlobKey = errors.New("invalid blob key: must be a non-empty relative path")
)
