package report

import (
	"io"

	"github.com/nao1215/docscrape/internal/model"
)

// Writer writes a crawl run to its destination.
type Writer interface {
	// Write outputs the run and returns the number of bytes written.
	Write(run *model.CrawlRun) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers and returns the total
// bytes written. It stops at the first error.
func (m *MultiWriter) Write(run *model.CrawlRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a run ended.
func statusText(run *model.CrawlRun) string {
	if run.Failed() {
		return "Failed: " + run.ErrorMessage
	}
	return "Complete"
}
