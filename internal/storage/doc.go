// Package storage persists crawl results.
//
// Two stores are provided:
//   - Uploader, the blob destination for the raw page tree. FileUploader
//     writes JSON documents below a local directory.
//   - CrawlDB, a SQLite (modernc.org/sqlite) history of crawl runs with
//     their pages and flattened documents, used by the history command.
package storage
