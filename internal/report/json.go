package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/docscrape/internal/model"
)

// JSONWriter outputs the page tree of a run as JSON, in the same shape
// that is uploaded to blob storage.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run's page tree. A run without a tree is written as null.
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	return w.writeJSON(run.Root)
}

// WriteDocuments outputs a list of flattened documents.
func (w *JSONWriter) WriteDocuments(docs []model.IndexableDocument) (int, error) {
	if docs == nil {
		docs = make([]model.IndexableDocument, 0)
	}
	return w.writeJSON(docs)
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a complete run with the version that produced it.
type JSONReport struct {
	// Version is the docscrape version.
	Version string `json:"version"`

	// Run is the complete crawl run.
	Run *model.CrawlRun `json:"run"`

	// PageCount is the number of pages in the tree.
	PageCount int `json:"page_count"`

	// DurationSeconds is the run duration.
	DurationSeconds float64 `json:"duration_seconds"`
}

// NewJSONReport creates a JSONReport for run.
func NewJSONReport(run *model.CrawlRun, version string) *JSONReport {
	return &JSONReport{
		Version:         version,
		Run:             run,
		PageCount:       run.PageCount(),
		DurationSeconds: run.Duration().Seconds(),
	}
}

// FullJSONWriter outputs complete runs wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete runs.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the complete run.
func (w *FullJSONWriter) Write(run *model.CrawlRun) (int, error) {
	return w.writeJSON(NewJSONReport(run, w.version))
}
