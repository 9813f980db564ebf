package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for docscrape.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docscrape",
		Short: "Crawl documentation sites into indexable documents",
		Long: `docscrape crawls a documentation site from one or more seed pages,
following links up to a depth limit. Every page is reduced to its visible
text, tables and images, and the page tree is flattened into documents
for a search index.

The raw page tree can be uploaded to a blob directory, and every run is
recorded in a local crawl history.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this file (rotated)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewFlattenCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
