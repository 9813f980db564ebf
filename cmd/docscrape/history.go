package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/docscrape/internal/config"
	"github.com/nao1215/docscrape/internal/report"
	"github.com/nao1215/docscrape/internal/storage"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed-url]",
		Short: "Show recorded crawl runs",
		Long: `History lists the crawl runs recorded by "docscrape crawl", newest first.
Give a seed URL to list only the runs of that seed.

Examples:
  # List recent runs
  docscrape history

  # List the runs of one seed
  docscrape history https://wiki.example.com/

  # Show one run in detail
  docscrape history --show <run-id>

  # Print one run as JSON, including its page tree and documents
  docscrape history --show <run-id> --json

  # Delete a run
  docscrape history --delete <run-id>`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().String("show", "",
		"Show the run with this ID")
	cmd.Flags().String("delete", "",
		"Delete the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Print the run selected with --show as JSON")
	cmd.Flags().String("db-dir", "",
		"Crawl history directory (default: XDG data directory)")
	cmd.MarkFlagsMutuallyExclusive("show", "delete")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetString("show")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetString("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	out := cmd.OutOrStdout()

	if _, err := os.Stat(filepath.Join(dbDir, storage.DBFileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'docscrape crawl <seed-url>' to crawl a site.")
		return nil
	}

	db, err := storage.Open(dbDir, storage.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case showID != "":
		run, err := db.GetRun(ctx, showID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("%w: %s", storage.ErrRunNotFound, showID)
		}
		if jsonOutput {
			_, err = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint()).Write(run)
		} else {
			_, err = report.NewSimpleWriter(out, report.WithVerbose(true)).Write(run)
		}
		return err

	case deleteID != "":
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", deleteID)
		return nil
	}

	seed := ""
	if len(args) > 0 {
		seed = args[0]
	}
	return listRuns(ctx, out, db, seed, limit)
}

// listRuns prints a table of stored runs.
func listRuns(ctx context.Context, out io.Writer, db *storage.CrawlDB, seed string, limit int) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No crawl history found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No crawl history found.")
		}
		return nil
	}

	fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %5s  %-8s  %s\n", "ID", "Started", "Pages", "Docs", "Status", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))

	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %5d  %-8s  %s\n",
			r.ID,
			r.StartedAt.In(time.Local).Format("2006-01-02 15:04:05"),
			r.PageCount,
			r.DocumentCount,
			status,
			r.SeedURL,
		)
	}

	fmt.Fprintln(out, "\nUse 'docscrape history --show <id>' to see a run in detail.")
	return nil
}
