package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/docscrape/internal/model"
)

// MarkdownWriter outputs runs in Markdown format: a summary table, a page
// outline, a depth chart and the tables and images of every page.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeAlert(md, run)
	w.writeOutline(md, run)
	w.writePieChart(md, run)
	w.writePages(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed URL", run.SeedURL},
		{"Run ID", run.ID},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", run.Duration().Round(1e6).String()},
		{"Max Depth", strconv.Itoa(run.MaxDepth)},
		{"Pages", strconv.Itoa(run.PageCount())},
		{"Documents", strconv.Itoa(len(run.Documents))},
	}
	if run.BlobLocation != "" {
		rows = append(rows, []string{"Uploaded To", run.BlobLocation})
	}
	rows = append(rows, []string{"Status", statusText(run)})

	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows:   escapeRows(rows),
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.CrawlRun) {
	switch {
	case run.Failed():
		md.Cautionf("The crawl failed: %s", run.ErrorMessage)
	case run.Root != nil && len(run.Documents) == 0:
		md.Warningf("None of the %d crawled pages contained text.", run.PageCount())
	default:
		return
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutline(md *markdown.Markdown, run *model.CrawlRun) {
	if run.Root == nil {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	items := make([]string, 0, run.PageCount())
	run.Root.Walk(func(page *model.PageRecord, depth int) bool {
		items = append(items, fmt.Sprintf("%s%s (depth %d)", strings.Repeat("  ", depth), page.URL, depth))
		return true
	})
	md.PlainText("```")
	for _, item := range items {
		md.PlainText(item)
	}
	md.PlainText("```")
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of pages per depth.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, run *model.CrawlRun) {
	counts := pagesByDepth(run.Root)
	if len(counts) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Depth"),
		piechart.WithShowData(true),
	)
	for depth, n := range counts {
		chart.LabelAndIntValue("Depth "+strconv.Itoa(depth), uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, run *model.CrawlRun) {
	if run.Root == nil {
		return
	}

	md.H2("Content")
	md.PlainText("")

	run.Root.Walk(func(page *model.PageRecord, _ int) bool {
		if len(page.Tables) == 0 && len(page.Images) == 0 {
			return true
		}

		md.H3(page.URL)
		md.PlainText("")
		for i, table := range page.Tables {
			w.writeTable(md, i+1, table)
		}
		if len(page.Images) > 0 {
			images := make([]string, 0, len(page.Images))
			for _, img := range page.Images {
				if img.Alt != "" {
					images = append(images, fmt.Sprintf("%s (%s)", img.URL, img.Alt))
				} else {
					images = append(images, img.URL)
				}
			}
			md.PlainText("Images:")
			md.PlainText("")
			md.BulletList(images...)
			md.PlainText("")
		}
		return true
	})
}

// writeTable renders an extracted table. The first row is used as the
// header, and short rows are padded to the widest row.
func (w *MarkdownWriter) writeTable(md *markdown.Markdown, n int, table model.Table) {
	width := 0
	for _, row := range table {
		width = max(width, len(row))
	}
	if width == 0 {
		return
	}

	rows := make([][]string, 0, len(table))
	for _, row := range table {
		padded := make([]string, width)
		copy(padded, row)
		rows = append(rows, padded)
	}
	rows = escapeRows(rows)

	md.PlainTextf("Table %d:", n)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: rows[0],
		Rows:   rows[1:],
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [docscrape](https://github.com/nao1215/docscrape)*")
}

// pagesByDepth returns the number of pages at each depth of the tree.
func pagesByDepth(root *model.PageRecord) []int {
	counts := make([]int, 0)
	root.Walk(func(_ *model.PageRecord, depth int) bool {
		for len(counts) <= depth {
			counts = append(counts, 0)
		}
		counts[depth]++
		return true
	})
	return counts
}

// escapeRows makes cell text safe inside a Markdown table.
func escapeRows(rows [][]string) [][]string {
	replacer := strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = replacer.Replace(cell)
		}
	}
	return out
}
