// Package pipeline runs a crawl run through its steps: crawl the seed,
// flatten the tree into documents, upload the raw tree and persist the run.
//
// Each step receives the CrawlRun filled in by the steps before it.
// BatchProcessor runs the pipeline for several seeds concurrently.
package pipeline
