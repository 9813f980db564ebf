package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlRun holds the state of one end-to-end crawl: the configuration it
// was started with, the resulting tree, the flattened documents, and where
// the raw tree was uploaded. Pipeline steps fill it in as they execute.
type CrawlRun struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// SeedURL is the page the crawl started from.
	SeedURL string `json:"seed_url"`

	// MaxDepth is the depth limit used for the crawl.
	MaxDepth int `json:"max_depth"`

	// SameOrigin records whether the same-origin filter was enabled.
	SameOrigin bool `json:"same_origin"`

	// StartedAt and FinishedAt bracket the pipeline execution.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Root is the crawled tree. Nil when the seed could not be fetched.
	Root *PageRecord `json:"root"`

	// Documents is the flattened form of Root.
	Documents []IndexableDocument `json:"documents"`

	// BlobLocation is where the raw tree was uploaded, if anywhere.
	BlobLocation string `json:"blob_location,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the last step error. ErrorMessage is its text, kept for JSON.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewCrawlRun creates a run for seedURL with a fresh random ID.
func NewCrawlRun(seedURL string, maxDepth int, sameOrigin bool) *CrawlRun {
	return &CrawlRun{
		ID:             uuid.NewString(),
		SeedURL:        seedURL,
		MaxDepth:       maxDepth,
		SameOrigin:     sameOrigin,
		StartedAt:      time.Now(),
		Documents:      make([]IndexableDocument, 0),
		PerformedSteps: make([]string, 0),
	}
}

// PageCount returns the number of pages in the crawled tree.
func (r *CrawlRun) PageCount() int {
	return r.Root.Count()
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether any step recorded an error.
func (r *CrawlRun) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// SetError records err as the run's error.
func (r *CrawlRun) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}
