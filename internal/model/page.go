package model

// Table is the row-major cell text of one HTML table.
// Header and data rows are not distinguished.
type Table [][]string

// ImageRef references an image found on a page.
type ImageRef struct {
	// URL is the image src resolved against the page URL.
	URL string `json:"url"`

	// Alt is the alt text, or empty when the attribute is absent.
	Alt string `json:"alt"`
}

// PageRecord represents one crawled page.
// A PageRecord tree never contains two nodes with the same URL.
type PageRecord struct {
	// URL is the fetched URL. It is unique within a single crawl.
	URL string `json:"url"`

	// Text is the visible text of the page with script and style content
	// removed, text pieces joined by newlines, and surrounding whitespace trimmed.
	Text string `json:"text"`

	// Tables contains every <table> on the page in document order.
	Tables []Table `json:"tables"`

	// Images contains every <img> with a src attribute in document order.
	Images []ImageRef `json:"images"`

	// Subpages are the pages crawled from this page's links, in the order
	// the links were discovered.
	Subpages []*PageRecord `json:"subpages"`
}

// NewPageRecord returns a PageRecord for url with empty, non-nil collections,
// so that it serializes with [] rather than null.
func NewPageRecord(url string) *PageRecord {
	return &PageRecord{
		URL:      url,
		Tables:   make([]Table, 0),
		Images:   make([]ImageRef, 0),
		Subpages: make([]*PageRecord, 0),
	}
}

// AddSubpage appends child to the subpages. Nil children are ignored.
func (p *PageRecord) AddSubpage(child *PageRecord) {
	if child == nil {
		return
	}
	p.Subpages = append(p.Subpages, child)
}

// Walk visits p and every descendant in pre-order.
// depth is 0 for p itself. Returning false from fn skips the children of
// that node. Walk on a nil record does nothing.
func (p *PageRecord) Walk(fn func(page *PageRecord, depth int) bool) {
	p.walk(fn, 0)
}

func (p *PageRecord) walk(fn func(page *PageRecord, depth int) bool, depth int) {
	if p == nil {
		return
	}
	if !fn(p, depth) {
		return
	}
	for _, sub := range p.Subpages {
		sub.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the tree rooted at p.
func (p *PageRecord) Count() int {
	n := 0
	p.Walk(func(*PageRecord, int) bool {
		n++
		return true
	})
	return n
}

// Depth returns the number of edges on the longest path from p to a leaf.
// A single page has depth 0; a nil record returns -1.
func (p *PageRecord) Depth() int {
	maxDepth := -1
	p.Walk(func(_ *PageRecord, depth int) bool {
		if depth > maxDepth {
			maxDepth = depth
		}
		return true
	})
	return maxDepth
}

// URLs returns the URL of every node in pre-order.
func (p *PageRecord) URLs() []string {
	urls := make([]string, 0)
	p.Walk(func(page *PageRecord, _ int) bool {
		urls = append(urls, page.URL)
		return true
	})
	return urls
}

// Find returns the node whose URL equals url, or nil.
func (p *PageRecord) Find(url string) *PageRecord {
	var found *PageRecord
	p.Walk(func(page *PageRecord, _ int) bool {
		if found != nil {
			return false
		}
		if page.URL == url {
			found = page
			return false
		}
		return true
	})
	return found
}
