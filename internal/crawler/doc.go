// Package crawler walks a documentation site from a seed page and builds a
// tree of model.PageRecord values.
//
// # Components
//
//   - Spider: depth-bounded recursive traversal with a traversal-wide visited set
//   - Parser: HTML extraction of text, tables, images and links
//
// # Traversal
//
// A URL is marked visited before it is fetched, and the visited set is shared
// by every branch of one Crawl call, so each distinct URL is requested at most
// once no matter how densely the site is cross-linked. Failed fetches prune
// only their own branch. The visited set belongs to the Crawl call, not to
// the Spider, so one Spider can run several crawls at the same time.
//
// # Usage
//
//	spider := crawler.NewSpider(crawler.NewHTTPClient(30*time.Second),
//	    crawler.WithMaxDepth(2),
//	    crawler.WithHeaders(map[string]string{"Authorization": "Bearer ..."}),
//	)
//	root, err := spider.Crawl(ctx, "https://wiki.example.com/display/DOCS")
package crawler
