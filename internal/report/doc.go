// Package report renders crawl runs for people and tools.
//
//   - SimpleWriter: indented page outline for the terminal
//   - JSONWriter: the raw page tree, or the flattened documents
//   - FullJSONWriter: the whole run with version information
//   - MarkdownWriter: a Markdown report with the extracted tables
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
