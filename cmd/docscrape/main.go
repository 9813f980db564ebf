// Package main provides the entry point for the docscrape CLI.
//
// docscrape crawls documentation sites such as Confluence spaces, extracts
// the visible text, tables and images of every page, and flattens the
// result into documents ready for a search index.
//
// Usage:
//
//	docscrape crawl <seed-url>
//	docscrape crawl --depth 2 -H "Authorization: Bearer ..." <seed-url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
