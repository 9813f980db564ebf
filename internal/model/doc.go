// Package model defines the data structures shared by the crawler, the
// flattener, the storage layer and the report writers.
//
// This package contains the following main types:
//   - PageRecord: one crawled page plus its recursively crawled subpages
//   - IndexableDocument: one flattened, index-ready unit of text
//   - CrawlRun: the state of one end-to-end crawl (tree, documents, timing)
//
// All types serialize to JSON with the field names consumed by the
// blob-storage and indexing collaborators.
package model
