package model

// MetadataURL is the metadata key holding the originating page URL.
const MetadataURL = "url"

// IndexableDocument is one unit of text handed to the indexing service.
type IndexableDocument struct {
	// ID is the originating page URL, or a caller-supplied prefix followed
	// by "root" when the page has no URL.
	ID string `json:"id"`

	// Text is copied verbatim from PageRecord.Text.
	Text string `json:"text"`

	// Metadata currently carries only the originating URL under MetadataURL.
	Metadata map[string]string `json:"metadata"`
}

// URL returns the originating page URL recorded in the metadata.
func (d IndexableDocument) URL() string {
	return d.Metadata[MetadataURL]
}
