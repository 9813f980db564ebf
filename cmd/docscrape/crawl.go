package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/docscrape/internal/config"
	"github.com/nao1215/docscrape/internal/crawler"
	"github.com/nao1215/docscrape/internal/metrics"
	"github.com/nao1215/docscrape/internal/model"
	"github.com/nao1215/docscrape/internal/pipeline"
	"github.com/nao1215/docscrape/internal/report"
	"github.com/nao1215/docscrape/internal/storage"
)

// errCrawlFailed is returned when at least one seed could not be crawled.
var errCrawlFailed = errors.New("crawl failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl a site and flatten its pages into documents",
		Long: `Crawl fetches each seed page and follows its links up to --depth hops,
extracting the visible text, tables and images of every page.

Links are followed only when they contain the seed's origin unless
--no-same-origin is given. Pages that fail to load are skipped; a seed
that fails to load fails its crawl.

The page tree is printed as an outline (or as JSON/Markdown), flattened
into documents (--documents), optionally uploaded to --blob-dir, and
recorded in the crawl history.

Examples:
  # Crawl a page and the pages it links to
  docscrape crawl https://wiki.example.com/display/DOCS

  # Crawl two levels deep with an access token
  docscrape crawl -d 2 -H "Authorization: Bearer $TOKEN" https://wiki.example.com/

  # Upload the tree and write the documents for indexing
  docscrape crawl --blob-dir ./blobs --documents docs.json https://wiki.example.com/

  # Print the page tree as JSON
  docscrape crawl --json https://wiki.example.com/

Environment variables:
  DOCSCRAPE_URL       seed URL when none is given as an argument
  DOCSCRAPE_DEPTH     crawl depth
  DOCSCRAPE_TIMEOUT   request timeout ("45s" or seconds)
  DOCSCRAPE_BLOB_DIR  upload directory
  DOCSCRAPE_BLOB_KEY  upload key inside the blob directory`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum number of link hops from the seed (0 = seed only)")
	cmd.Flags().StringArrayP("header", "H", nil,
		`HTTP header sent with every request, as "Name: value" (repeatable)`)
	cmd.Flags().Bool("no-same-origin", false,
		"Follow links to other origins")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Requests in flight per seed (values above 1 make sibling order nondeterministic)")
	cmd.Flags().Int("max-pages", 0,
		"Maximum number of fetches per seed (0 = unlimited)")
	cmd.Flags().Int("batch", config.DefaultBatchSize,
		"Number of seeds crawled at the same time")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .docscrape in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Print the page tree as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print a Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of stdout")
	cmd.Flags().String("documents", "",
		"Write the flattened documents as JSON to this file")

	// Storage flags
	cmd.Flags().String("blob-dir", "",
		"Upload the page tree below this directory")
	cmd.Flags().String("blob-key", config.DefaultBlobKey,
		"Path of the uploaded tree inside --blob-dir")
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the crawl history")
	cmd.Flags().String("db-dir", "",
		"Crawl history directory (default: XDG data directory)")
	cmd.Flags().String("metrics-file", "",
		"Write crawl metrics in Prometheus text format to this file")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog := setupLogger(cmd)
	defer closeLog() //nolint:errcheck // nothing to do on close failure at exit
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), cfg, logger)
}

// buildConfig creates a Config from the environment, the config file and
// the command flags. Flags win over environment variables, which win over
// the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.SeedURLs = args

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	flags := cmd.Flags()
	var err error

	if flags.Changed("depth") {
		if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
		cfg.DepthExplicit = true
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("blob-dir") {
		if cfg.BlobDir, err = flags.GetString("blob-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("blob-key") {
		if cfg.BlobKey, err = flags.GetString("blob-key"); err != nil {
			return nil, err
		}
	}

	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(rawHeaders); err != nil {
		return nil, err
	}

	noSameOrigin, err := flags.GetBool("no-same-origin")
	if err != nil {
		return nil, err
	}
	cfg.SameOrigin = !noSameOrigin

	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DocumentsFile, err = flags.GetString("documents"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if dbDir, err := flags.GetString("db-dir"); err != nil {
		return nil, err
	} else if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.JSONLogs = boolFlag(cmd, "json-logs")
	cfg.LogFile = stringFlag(cmd, "log-file")

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSiteConfigs loads the config file into cfg.SiteConfigs.
// A missing file is an error only when its path was given explicitly.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
		return nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.SiteConfigs = siteConfigs
	return nil
}

// parseHeaders parses "Name: value" strings. Later values for the same
// name replace earlier ones.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (expected \"Name: value\")", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl crawls every seed, writes the reports and returns an error
// wrapping errCrawlFailed when any seed failed.
func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.SeedURLs,
		"depth", cfg.CrawlDepth,
		"sameOrigin", cfg.SameOrigin,
		"saveToDB", cfg.SaveToDB,
	)

	var db *storage.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = storage.Open(cfg.DBDir, storage.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	var uploader storage.Uploader
	if cfg.BlobDir != "" {
		uploader = storage.NewFileUploader(cfg.BlobDir)
	}

	m := metrics.NewCrawlMetrics()
	client := crawler.NewHTTPClient(cfg.Timeout)

	bp := pipeline.NewBatchProcessor(
		func(seed string) *pipeline.Pipeline {
			return newSeedPipeline(client, cfg, seed, db, uploader, m, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	runs, batchErr := bp.ProcessBatch(ctx, cfg.SeedURLs)
	runs = slices.DeleteFunc(runs, func(r *model.CrawlRun) bool { return r == nil })

	if err := writeOutputs(out, cfg, runs, m); err != nil {
		return err
	}
	if batchErr != nil {
		return batchErr
	}

	failed := 0
	for _, run := range runs {
		if run.Failed() {
			failed++
			logger.Error("crawl failed", "seed", run.SeedURL, "error", run.ErrorMessage)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d seeds", errCrawlFailed, failed, len(runs))
	}
	return nil
}

// newSeedPipeline builds the pipeline for one seed with its site settings.
func newSeedPipeline(
	client *http.Client,
	cfg *config.Config,
	seed string,
	db *storage.CrawlDB,
	uploader storage.Uploader,
	m *metrics.CrawlMetrics,
	logger *slog.Logger,
) *pipeline.Pipeline {
	settings := cfg.ForSeed(seed)

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineSpiderOptions(
			crawler.WithMaxDepth(settings.Depth),
			crawler.WithSameOrigin(settings.SameOrigin),
			crawler.WithHeaders(settings.Headers),
			crawler.WithIgnorePatterns(settings.IgnorePatterns),
			crawler.WithFollowPatterns(settings.FollowPatterns),
			crawler.WithUserAgent(cfg.UserAgent),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
			crawler.WithMaxPages(cfg.MaxPages),
			crawler.WithConcurrency(cfg.Concurrency),
		),
		pipeline.WithPipelineMetrics(m),
	}
	if uploader != nil {
		key := blobKeyFor(cfg.BlobKey, slices.Index(cfg.SeedURLs, seed), len(cfg.SeedURLs))
		configOpts = append(configOpts, pipeline.WithPipelineUploader(uploader, key))
	}
	if db != nil {
		configOpts = append(configOpts, pipeline.WithPipelineDB(db))
	}

	return pipeline.DefaultPipeline(client, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...)
}

// blobKeyFor returns the upload key of the seed at index. With several
// seeds, each tree gets its own key: data.json becomes data-1.json, ...
func blobKeyFor(key string, index, total int) string {
	if total <= 1 || index < 0 {
		return key
	}
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + "-" + strconv.Itoa(index+1) + ext
}

// writeOutputs writes the report, the documents file and the metrics file.
func writeOutputs(out io.Writer, cfg *config.Config, runs []*model.CrawlRun, m *metrics.CrawlMetrics) error {
	if err := withOutput(cfg.ReportFile, out, func(w io.Writer) error {
		return writeReport(w, cfg, runs)
	}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.DocumentsFile != "" {
		docs := make([]model.IndexableDocument, 0)
		for _, run := range runs {
			docs = append(docs, run.Documents...)
		}
		if err := withOutput(cfg.DocumentsFile, out, func(w io.Writer) error {
			_, err := report.NewJSONWriter(w, report.WithPrettyPrint()).WriteDocuments(docs)
			return err
		}); err != nil {
			return fmt.Errorf("failed to write documents: %w", err)
		}
	}

	if cfg.MetricsFile != "" {
		if err := withOutput(cfg.MetricsFile, out, m.WriteText); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

// writeReport writes every run in the selected report format.
func writeReport(w io.Writer, cfg *config.Config, runs []*model.CrawlRun) error {
	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(w)
	default:
		writer = report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}

	for _, run := range runs {
		if _, err := writer.Write(run); err != nil {
			return err
		}
	}
	return nil
}

// withOutput calls fn with the file at path, or with fallback when path is
// empty. Parent directories are created as needed.
func withOutput(path string, fallback io.Writer, fn func(io.Writer) error) error {
	if path == "" {
		return fn(fallback)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Outputs contain page text from private spaces.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
