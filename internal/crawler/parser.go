package crawler

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/docscrape/internal/model"
)

// textSeparator joins the text pieces of a page.
const textSeparator = "\n"

// strippedElements are removed from the document before any extraction.
var strippedElements = map[string]bool{
	"script": true,
	"style":  true,
}

// Parser extracts page content from HTML.
// Relative URLs are resolved against the URL of the page being parsed.
type Parser struct {
	// baseURL is the URL of the page being parsed.
	baseURL *url.URL
}

// ParseResult contains everything extracted from one HTML page.
type ParseResult struct {
	// Text is the visible text, one trimmed text node per line.
	Text string

	// Tables holds each <table> as rows of trimmed cell text.
	Tables []model.Table

	// Images holds each <img> with a non-empty src.
	Images []model.ImageRef

	// Links holds the absolute http(s) targets of <a href> elements without
	// fragments, deduplicated, in document order.
	Links []string
}

// NewParser creates a Parser that resolves relative URLs against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads an HTML document and extracts its text, tables, images and
// links. Script and style subtrees are removed first, so their content never
// reaches any of the results.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	// With scripting disabled, <noscript> content is parsed as markup
	// instead of a raw text blob.
	doc, err := html.ParseWithOptions(content, html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, err
	}

	removeElements(doc, strippedElements)
	sel := goquery.NewDocumentFromNode(doc).Selection

	return &ParseResult{
		Text:   extractText(doc),
		Tables: extractTables(sel),
		Images: p.extractImages(sel),
		Links:  p.extractLinks(sel),
	}, nil
}

// removeElements detaches every element whose tag is in tags.
func removeElements(root *html.Node, tags map[string]bool) {
	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && tags[n.Data] {
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// extractText joins every non-blank text node under root with newlines.
// Comments and doctype nodes are not text.
func extractText(root *html.Node) string {
	pieces := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := normalizeText(n.Data); s != "" {
				pieces = append(pieces, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.TrimSpace(strings.Join(pieces, textSeparator))
}

// normalizeText trims s and puts it in Unicode NFC form so that visually
// identical text compares equal.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// strippedText concatenates the trimmed text nodes under the selection
// without a separator.
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(normalizeText(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

// extractTables converts each <table> into rows of cell text.
// Tables, rows and cells keep document order.
func extractTables(sel *goquery.Selection) []model.Table {
	tables := make([]model.Table, 0)
	sel.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := make(model.Table, 0)
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := make([]string, 0)
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strippedText(cell))
			})
			rows = append(rows, cells)
		})
		tables = append(tables, rows)
	})
	return tables
}

// extractImages collects <img> elements with a src attribute.
func (p *Parser) extractImages(sel *goquery.Selection) []model.ImageRef {
	images := make([]model.ImageRef, 0)
	sel.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		resolved := p.resolveURL(src)
		if resolved == nil {
			return
		}
		alt, _ := img.Attr("alt")
		images = append(images, model.ImageRef{
			URL: resolved.String(),
			Alt: alt,
		})
	})
	return images
}

// extractLinks collects the distinct http(s) targets of <a href> elements.
func (p *Parser) extractLinks(sel *goquery.Selection) []string {
	links := newOrderedSet()
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved := p.resolveURL(href)
		if resolved == nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		// Fragments address the same document.
		resolved.Fragment = ""
		resolved.RawFragment = ""
		links.add(resolved.String())
	})
	return links.values()
}

// resolveURL resolves ref against the base URL.
// It returns nil for empty or unparseable references.
func (p *Parser) resolveURL(ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	return p.baseURL.ResolveReference(u)
}
