package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/docscrape/internal/flatten"
	"github.com/nao1215/docscrape/internal/model"
	"github.com/nao1215/docscrape/internal/report"
)

// NewFlattenCmd creates the flatten command.
func NewFlattenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flatten <tree.json>",
		Short: "Convert a saved page tree into indexable documents",
		Long: `Flatten reads a page tree written by "docscrape crawl --json" or
uploaded with --blob-dir and prints one document per page that has text.

Use "-" to read the tree from stdin.

Examples:
  docscrape flatten blobs/confluence_scrapes/data.json
  docscrape crawl --json --no-db https://wiki.example.com/ | docscrape flatten -`,
		Args: cobra.ExactArgs(1),
		RunE: runFlattenCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Write the documents to this file instead of stdout")
	cmd.Flags().String("prefix", "",
		`ID prefix for pages without a URL (the id becomes prefix+"root")`)

	return cmd
}

func runFlattenCmd(cmd *cobra.Command, args []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}

	root, err := readTree(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	docs := flatten.FlattenWithPrefix(root, prefix)
	return withOutput(outputPath, cmd.OutOrStdout(), func(w io.Writer) error {
		_, err := report.NewJSONWriter(w, report.WithPrettyPrint()).WriteDocuments(docs)
		return err
	})
}

// readTree decodes a page tree from path, or from stdin when path is "-".
// A JSON null yields a nil tree.
func readTree(stdin io.Reader, path string) (*model.PageRecord, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // user-provided input path
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page tree: %w", err)
	}

	var root *model.PageRecord
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid page tree %s: %w", path, err)
	}
	return root, nil
}
