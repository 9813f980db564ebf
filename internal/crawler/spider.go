package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/docscrape/internal/metrics"
	"github.com/nao1215/docscrape/internal/model"
)

// Defaults used by NewSpider.
const (
	DefaultMaxDepth    = 1
	DefaultUserAgent   = "docscrape/1.0 (+https://github.com/nao1215/docscrape)"
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Spider crawls a site from a seed page and returns the pages reachable
// within the depth limit as a tree.
type Spider struct {
	// client performs the HTTP requests. Its Timeout bounds each request.
	client *http.Client

	// maxDepth limits how many link hops are followed from the seed.
	// 0 means only the seed page is fetched.
	maxDepth int

	// headers are sent with every request, e.g. for authentication.
	headers map[string]string

	// sameOrigin restricts traversal to links containing the seed origin.
	sameOrigin bool

	// userAgent is sent unless headers sets User-Agent itself.
	userAgent string

	// maxBodySize limits how much of each response body is read.
	maxBodySize int64

	// maxPages caps the number of fetch attempts per crawl. 0 means no cap.
	maxPages int

	// concurrency is the maximum number of requests in flight.
	// 1 crawls sequentially in discovery order.
	concurrency int

	// ignorePatterns are URL path globs that are never followed.
	ignorePatterns []string

	// followPatterns, when set, are the only URL path globs followed.
	followPatterns []string

	logger  *slog.Logger
	metrics *metrics.CrawlMetrics
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the seed page, 1 = the seed plus the pages it links to, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithHeaders sets HTTP headers sent with every request.
// The map is copied.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = maps.Clone(headers)
	}
}

// WithSameOrigin enables or disables the same-origin filter.
// When enabled, only links whose absolute URL contains the seed's
// scheme://host[:port] as a substring are followed.
func WithSameOrigin(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.sameOrigin = enabled
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithMaxPages caps the number of pages fetched in one crawl.
// 0 disables the cap.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithConcurrency sets how many requests may be in flight at once.
//
// With n > 1 sibling branches are crawled in parallel. Each node still lists
// its subpages in link discovery order, but when two branches link to the
// same URL, which branch ends up owning that page is no longer deterministic.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithIgnorePatterns sets URL path patterns that are never followed.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching at least one
// pattern. An empty slice allows every path not ignored.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger used for fetch failures and progress.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithMetrics sets the collector that records fetch outcomes.
func WithMetrics(m *metrics.CrawlMetrics) SpiderOption {
	return func(s *Spider) {
		s.metrics = m
	}
}

// NewHTTPClient returns an HTTP client whose requests time out after timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewSpider creates a Spider that fetches pages with client.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:      client,
		maxDepth:    DefaultMaxDepth,
		headers:     make(map[string]string),
		sameOrigin:  true,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// MaxDepth returns the configured depth limit.
func (s *Spider) MaxDepth() int {
	return s.maxDepth
}

// SameOrigin reports whether the same-origin filter is enabled.
func (s *Spider) SameOrigin() bool {
	return s.sameOrigin
}

// crawlState is the traversal-scoped state of one Crawl call.
type crawlState struct {
	// origin is the seed's scheme://host[:port].
	origin string

	visited *visitedSet

	// fetches counts fetch attempts for the maxPages cap.
	fetches atomic.Int64

	// inflight bounds concurrent requests.
	inflight *semaphore.Weighted
}

// Crawl fetches seedURL and, recursively, the pages it links to up to the
// configured depth, returning the seed's PageRecord.
//
// An invalid seed or negative depth fails before any request is made.
// Pages that fail to fetch are logged and left out of the tree; if the seed
// itself fails, Crawl returns a nil tree and an error wrapping both
// ErrSeedUnreachable and the *FetchError.
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*model.PageRecord, error) {
	seed, err := parseSeed(seedURL)
	if err != nil {
		return nil, err
	}
	if s.maxDepth < 0 {
		return nil, ErrNegativeDepth
	}

	st := &crawlState{
		origin:   seed.Scheme + "://" + seed.Host,
		visited:  newVisitedSet(),
		inflight: semaphore.NewWeighted(int64(s.concurrency)),
	}

	s.logger.Info("starting crawl",
		"seed", seed.String(),
		"maxDepth", s.maxDepth,
		"sameOrigin", s.sameOrigin,
		"concurrency", s.concurrency,
		"headers", slices.Sorted(maps.Keys(s.headers)),
	)

	root, err := s.crawlNode(ctx, st, seed.String(), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeedUnreachable, err)
	}

	s.logger.Info("crawl finished",
		"seed", seed.String(),
		"pages", root.Count(),
		"visited", st.visited.len(),
	)
	return root, nil
}

// parseSeed validates the seed and strips its fragment.
func parseSeed(seedURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(seedURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeedURL, seedURL)
	}
	u.Fragment = ""
	u.RawFragment = ""
	// "http://host" and "http://host/" are the same page; links resolve
	// to the latter.
	if u.Path == "" && u.RawQuery == "" {
		u.Path = "/"
	}
	return u, nil
}

// crawlNode fetches pageURL and recursively its links.
// It returns a nil record when the page is skipped or fails; the error is
// non-nil only for failed fetches.
func (s *Spider) crawlNode(ctx context.Context, st *crawlState, pageURL string, depth int) (*model.PageRecord, error) {
	if st.visited.contains(pageURL) {
		s.metrics.RecordSkip(metrics.SkipVisited)
		return nil, nil
	}
	if depth > s.maxDepth {
		s.metrics.RecordSkip(metrics.SkipDepth)
		return nil, nil
	}
	// Mark before fetching: a URL gets at most one attempt even if it fails.
	if !st.visited.add(pageURL) {
		s.metrics.RecordSkip(metrics.SkipVisited)
		return nil, nil
	}
	if s.maxPages > 0 && st.fetches.Add(1) > int64(s.maxPages) {
		s.metrics.RecordSkip(metrics.SkipMaxPages)
		return nil, nil
	}

	body, contentType, err := s.fetch(ctx, st, pageURL)
	if err != nil {
		var fetchErr *FetchError
		status := 0
		if errors.As(err, &fetchErr) {
			status = fetchErr.StatusCode
		}
		s.logger.Warn("fetch failed",
			"url", pageURL,
			"depth", depth,
			"status", status,
			"error", err,
		)
		return nil, err
	}

	page := model.NewPageRecord(pageURL)
	result := s.extract(pageURL, body, contentType)
	if result == nil {
		return page, nil
	}
	page.Text = result.Text
	page.Tables = result.Tables
	page.Images = result.Images

	s.logger.Debug("page crawled",
		"url", pageURL,
		"depth", depth,
		"links", len(result.Links),
		"tables", len(result.Tables),
		"images", len(result.Images),
	)

	if depth < s.maxDepth {
		links := s.filterLinks(st, result.Links)
		for _, child := range s.crawlChildren(ctx, st, links, depth+1) {
			page.AddSubpage(child)
		}
	}

	return page, nil
}

// crawlChildren crawls links at depth and returns their records in link
// order. Nil entries are pruned pages.
func (s *Spider) crawlChildren(ctx context.Context, st *crawlState, links []string, depth int) []*model.PageRecord {
	children := make([]*model.PageRecord, len(links))

	if s.concurrency <= 1 {
		for i, link := range links {
			children[i], _ = s.crawlNode(ctx, st, link, depth) //nolint:errcheck // failure already logged; branch is pruned
		}
		return children
	}

	var g errgroup.Group
	for i, link := range links {
		g.Go(func() error {
			children[i], _ = s.crawlNode(ctx, st, link, depth) //nolint:errcheck // failure already logged; branch is pruned
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors
	return children
}

// fetch performs the GET request and returns the (size-limited) body and
// its Content-Type. Every failure is returned as a *FetchError.
func (s *Spider) fetch(ctx context.Context, st *crawlState, pageURL string) ([]byte, string, error) {
	start := time.Now()

	if err := st.inflight.Acquire(ctx, 1); err != nil {
		s.metrics.RecordFetch(metrics.OutcomeCancelled, time.Since(start))
		return nil, "", &FetchError{URL: pageURL, Err: err}
	}
	defer st.inflight.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		s.metrics.RecordFetch(metrics.OutcomeTransportError, time.Since(start))
		return nil, "", &FetchError{URL: pageURL, Err: err}
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		outcome := metrics.OutcomeTransportError
		if ctx.Err() != nil {
			outcome = metrics.OutcomeCancelled
		}
		s.metrics.RecordFetch(outcome, time.Since(start))
		return nil, "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.metrics.RecordFetch(metrics.OutcomeHTTPError, time.Since(start))
		return nil, "", newStatusError(pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		s.metrics.RecordFetch(metrics.OutcomeTransportError, time.Since(start))
		return nil, "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	s.metrics.RecordFetch(metrics.OutcomeOK, time.Since(start))
	return body, resp.Header.Get("Content-Type"), nil
}

// extract parses body as HTML. It returns nil for non-HTML content and
// for documents that cannot be parsed; such pages keep empty content.
func (s *Spider) extract(pageURL string, body []byte, contentType string) *ParseResult {
	if !isHTML(contentType) {
		s.logger.Debug("skipping extraction of non-HTML content",
			"url", pageURL,
			"contentType", contentType,
		)
		return nil
	}

	var reader io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(reader, contentType); err == nil {
		reader = decoded
	} else {
		reader = bytes.NewReader(body)
	}

	parser, err := NewParser(pageURL)
	if err != nil {
		s.logger.Warn("parse failed", "url", pageURL, "error", err)
		return nil
	}
	result, err := parser.Parse(reader)
	if err != nil {
		s.logger.Warn("parse failed", "url", pageURL, "error", err)
		return nil
	}
	return result
}

// isHTML reports whether contentType may hold HTML. A missing
// Content-Type is treated as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// filterLinks drops links outside the seed origin (when the filter is on)
// and links excluded by the path patterns.
func (s *Spider) filterLinks(st *crawlState, links []string) []string {
	kept := make([]string, 0, len(links))
	for _, link := range links {
		if s.sameOrigin && !strings.Contains(link, st.origin) {
			continue
		}
		if !s.shouldCrawl(link) {
			s.metrics.RecordSkip(metrics.SkipPattern)
			continue
		}
		kept = append(kept, link)
	}
	return kept
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	if len(s.ignorePatterns) == 0 && len(s.followPatterns) == 0 {
		return true
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/42"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
