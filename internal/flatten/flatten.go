// Package flatten turns a crawled page tree into the flat document list
// handed to a search index.
package flatten

import (
	"strings"

	"github.com/nao1215/docscrape/internal/model"
)

// rootSuffix is appended to the prefix to form the id of a page without URL.
const rootSuffix = "root"

// Flatten returns one document per page with non-blank text, in pre-order.
// A nil root yields an empty slice. The tree is not modified, so repeated
// calls on the same tree return identical results.
func Flatten(root *model.PageRecord) []model.IndexableDocument {
	return FlattenWithPrefix(root, "")
}

// FlattenWithPrefix is Flatten with an id prefix for pages that have no URL.
// Such a page gets the id prefix+"root"; its subpages use that id as their
// prefix in turn.
func FlattenWithPrefix(root *model.PageRecord, prefix string) []model.IndexableDocument {
	docs := make([]model.IndexableDocument, 0)
	return appendDocuments(docs, root, prefix)
}

func appendDocuments(docs []model.IndexableDocument, page *model.PageRecord, prefix string) []model.IndexableDocument {
	if page == nil {
		return docs
	}

	id := page.URL
	if id == "" {
		id = prefix + rootSuffix
	}

	if strings.TrimSpace(page.Text) != "" {
		docs = append(docs, model.IndexableDocument{
			ID:   id,
			Text: page.Text,
			Metadata: map[string]string{
				model.MetadataURL: page.URL,
			},
		})
	}

	for _, sub := range page.Subpages {
		docs = appendDocuments(docs, sub, id)
	}
	return docs
}
