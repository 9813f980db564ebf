package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/docscrape/internal/model"
)

// SimpleWriter outputs a plain text summary of a run with an indented
// outline of the crawled pages.
type SimpleWriter struct {
	baseWriter

	// verbose adds per-page counts and the document list.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary and page outline.
func (w *SimpleWriter) Write(run *model.CrawlRun) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeOutline(&sb, run)
	if w.verbose {
		w.writeDocuments(&sb, run)
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.CrawlRun) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Seed:       %s\n", run.SeedURL)
	fmt.Fprintf(sb, "Run:        %s\n", run.ID)
	fmt.Fprintf(sb, "Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", run.Duration().Round(1e6))
	fmt.Fprintf(sb, "Max depth:  %d\n", run.MaxDepth)
	fmt.Fprintf(sb, "Pages:      %d\n", run.PageCount())
	fmt.Fprintf(sb, "Documents:  %d\n", len(run.Documents))
	if run.BlobLocation != "" {
		fmt.Fprintf(sb, "Uploaded:   %s\n", run.BlobLocation)
	}
	fmt.Fprintf(sb, "Status:     %s\n", statusText(run))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutline(sb *strings.Builder, run *model.CrawlRun) {
	if run.Root == nil {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nPAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	run.Root.Walk(func(page *model.PageRecord, depth int) bool {
		indent := strings.Repeat("  ", depth)
		marker := "*"
		if strings.TrimSpace(page.Text) == "" {
			// Pages without text produce no document.
			marker = "o"
		}
		fmt.Fprintf(sb, "%s%s %s\n", indent, marker, page.URL)
		if w.verbose {
			fmt.Fprintf(sb, "%s    text: %d chars, tables: %d, images: %d\n",
				indent, len(page.Text), len(page.Tables), len(page.Images))
		}
		return true
	})
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDocuments(sb *strings.Builder, run *model.CrawlRun) {
	if len(run.Documents) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nDOCUMENTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for i, doc := range run.Documents {
		fmt.Fprintf(sb, "%3d. %s (%d chars)\n", i+1, doc.ID, len(doc.Text))
	}
	sb.WriteString("\n")
}
