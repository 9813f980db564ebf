package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/docscrape/internal/model"
)

// createTestRun creates a finished run with a small page tree:
//
//	http://docs.example.com/
//	├── http://docs.example.com/install
//	│   └── http://docs.example.com/install/linux (no text)
//	└── http://docs.example.com/config
func createTestRun() *model.CrawlRun {
	run := model.NewCrawlRun("http://docs.example.com/", 2, true)
	run.StartedAt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	run.FinishedAt = run.StartedAt.Add(1500 * time.Millisecond)

	root := model.NewPageRecord("http://docs.example.com/")
	root.Text = "Welcome"

	install := model.NewPageRecord("http://docs.example.com/install")
	install.Text = "Install guide"
	install.Images = append(install.Images, model.ImageRef{URL: "http://docs.example.com/img/setup.png", Alt: "Setup"})

	linux := model.NewPageRecord("http://docs.example.com/install/linux")

	config := model.NewPageRecord("http://docs.example.com/config")
	config.Text = "Configuration"
	config.Tables = append(config.Tables, model.Table{
		{"Key", "Value"},
		{"timeout", "30s"},
		{"pattern", "a|b"},
	})

	install.AddSubpage(linux)
	root.AddSubpage(install)
	root.AddSubpage(config)
	run.Root = root

	run.Documents = []model.IndexableDocument{
		{ID: "http://docs.example.com/", Text: "Welcome", Metadata: map[string]string{model.MetadataURL: "http://docs.example.com/"}},
		{ID: "http://docs.example.com/install", Text: "Install guide", Metadata: map[string]string{model.MetadataURL: "http://docs.example.com/install"}},
		{ID: "http://docs.example.com/config", Text: "Configuration", Metadata: map[string]string{model.MetadataURL: "http://docs.example.com/config"}},
	}
	run.BlobLocation = "/tmp/blobs/confluence_scrapes/data.json"
	run.PerformedSteps = []string{"crawl", "flatten", "upload"}
	return run
}

func createFailedRun() *model.CrawlRun {
	run := model.NewCrawlRun("http://down.example.com/", 1, true)
	run.FinishedAt = run.StartedAt.Add(time.Second)
	run.SetError(errors.New("seed URL could not be fetched: status 503"))
	return run
}

// TestSimpleWriter tests the plain text writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes run header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := createTestRun()

		if _, err := NewSimpleWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"Seed:       http://docs.example.com/",
			"Run:        " + run.ID,
			"Pages:      4",
			"Documents:  3",
			"Uploaded:   /tmp/blobs/confluence_scrapes/data.json",
			"Status:     Complete",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("writes indented outline", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"\n* http://docs.example.com/\n",
			"\n  * http://docs.example.com/install\n",
			"\n    o http://docs.example.com/install/linux\n",
			"\n  * http://docs.example.com/config\n",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Index(output, "/install\n") > strings.Index(output, "/config\n") {
			t.Error("expected pages in pre-order")
		}
	})

	t.Run("verbose adds details", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "tables: 1, images: 0") {
			t.Error("expected per-page counts in verbose output")
		}
		if !strings.Contains(output, "DOCUMENTS") {
			t.Error("expected document list in verbose output")
		}
	})

	t.Run("returns bytes written", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes, got %d", buf.Len(), n)
		}
	})
}

func TestSimpleWriterWithError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewSimpleWriter(&buf).Write(createFailedRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Failed: seed URL could not be fetched") {
		t.Errorf("expected failure status, got:\n%s", output)
	}
	if strings.Contains(output, "PAGES") {
		t.Error("expected no outline for a run without a tree")
	}
}

// TestJSONWriter tests the page tree JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes the page tree", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := createTestRun()
		if _, err := NewJSONWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.PageRecord
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.URL != "http://docs.example.com/" {
			t.Errorf("expected root URL, got %q", got.URL)
		}
		if got.Count() != 4 {
			t.Errorf("expected 4 pages, got %d", got.Count())
		}
		if !strings.HasSuffix(buf.String(), "}\n") {
			t.Error("expected trailing newline")
		}
	})

	t.Run("empty collections are arrays", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := model.NewCrawlRun("http://example.com/", 0, true)
		run.Root = model.NewPageRecord("http://example.com/")

		if _, err := NewJSONWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := `{"url":"http://example.com/","text":"","tables":[],"images":[],"subpages":[]}` + "\n"
		if buf.String() != want {
			t.Errorf("expected %s, got %s", want, buf.String())
		}
	})

	t.Run("nil tree is null", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createFailedRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "null\n" {
			t.Errorf("expected null, got %q", buf.String())
		}
	})

	t.Run("writes documents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteDocuments(createTestRun().Documents); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var docs []model.IndexableDocument
		if err := json.Unmarshal(buf.Bytes(), &docs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(docs) != 3 {
			t.Fatalf("expected 3 documents, got %d", len(docs))
		}
		if docs[1].Metadata[model.MetadataURL] != "http://docs.example.com/install" {
			t.Errorf("unexpected metadata: %v", docs[1].Metadata)
		}
	})

	t.Run("nil documents are an empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteDocuments(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "[]\n" {
			t.Errorf("expected [], got %q", buf.String())
		}
	})
}

func TestWithIndent(t *testing.T) {
	t.Parallel()

	t.Run("pretty print uses two spaces", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"url\": ") {
			t.Errorf("expected two-space indentation, got:\n%s", buf.String())
		}
	})

	t.Run("custom prefix and indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"url\": ") {
			t.Errorf("expected custom indentation, got:\n%s", buf.String())
		}
	})
}

// TestFullJSONWriter tests the complete run writer.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	run := createTestRun()
	if _, err := NewFullJSONWriter(&buf, "1.2.3").Write(run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		Version         string  `json:"version"`
		PageCount       int     `json:"page_count"`
		DurationSeconds float64 `json:"duration_seconds"`
		Run             struct {
			ID             string   `json:"id"`
			SeedURL        string   `json:"seed_url"`
			PerformedSteps []string `json:"performed_steps"`
		} `json:"run"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if got.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", got.Version)
	}
	if got.PageCount != 4 {
		t.Errorf("expected page count 4, got %d", got.PageCount)
	}
	if got.DurationSeconds != 1.5 {
		t.Errorf("expected duration 1.5, got %v", got.DurationSeconds)
	}
	if got.Run.ID != run.ID || got.Run.SeedURL != run.SeedURL {
		t.Errorf("unexpected run: %+v", got.Run)
	}
	if len(got.Run.PerformedSteps) != 3 {
		t.Errorf("expected 3 steps, got %v", got.Run.PerformedSteps)
	}
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var simple, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&simple), NewJSONWriter(&js))

		n, err := mw.Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if simple.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to produce output")
		}
		if n != simple.Len()+js.Len() {
			t.Errorf("expected total %d, got %d", simple.Len()+js.Len(), n)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(NewJSONWriter(failingWriter{}), NewSimpleWriter(&after))

		if _, err := mw.Write(createTestRun()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := createTestRun()
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"http://docs.example.com/",
			run.ID,
			"Complete",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes outline and depth chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "## Pages") {
			t.Error("expected pages section")
		}
		if !strings.Contains(output, "    http://docs.example.com/install/linux (depth 2)") {
			t.Error("expected indented outline entry")
		}
		if !strings.Contains(output, "```mermaid") || !strings.Contains(output, "Pages by Depth") {
			t.Error("expected mermaid pie chart")
		}
	})

	t.Run("writes tables and images", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "### http://docs.example.com/config") {
			t.Error("expected section for page with a table")
		}
		if !strings.Contains(output, "timeout") || !strings.Contains(output, `a\|b`) {
			t.Errorf("expected escaped table cells, got:\n%s", output)
		}
		if !strings.Contains(output, "http://docs.example.com/img/setup.png (Setup)") {
			t.Error("expected image entry")
		}
		if strings.Contains(output, "### http://docs.example.com/install/linux") {
			t.Error("expected no section for page without tables or images")
		}
	})

	t.Run("single level tree has no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := model.NewCrawlRun("http://example.com/", 0, true)
		run.Root = model.NewPageRecord("http://example.com/")
		run.Root.Text = "only"

		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "```mermaid") {
			t.Error("expected no chart for a single page")
		}
	})

	t.Run("warns when no page has text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		run := model.NewCrawlRun("http://example.com/", 0, true)
		run.Root = model.NewPageRecord("http://example.com/")

		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Errorf("expected warning alert, got:\n%s", buf.String())
		}
	})
}

func TestMarkdownWriterWithError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createFailedRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "[!CAUTION]") {
		t.Error("expected caution alert")
	}
	if !strings.Contains(output, "seed URL could not be fetched") {
		t.Error("expected error message")
	}
	if strings.Contains(output, "## Pages") {
		t.Error("expected no outline for a failed run")
	}
}

func TestEscapeRows(t *testing.T) {
	t.Parallel()

	got := escapeRows([][]string{{"a|b", "line1\nline2"}})
	if got[0][0] != `a\|b` || got[0][1] != "line1 line2" {
		t.Errorf("unexpected escaping: %v", got)
	}
}

func TestPagesByDepth(t *testing.T) {
	t.Parallel()

	got := pagesByDepth(createTestRun().Root)
	want := []int{1, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("depth %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if n := len(pagesByDepth(nil)); n != 0 {
		t.Errorf("expected no depths for nil tree, got %d", n)
	}
}
