package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/docscrape/internal/crawler"
	"github.com/nao1215/docscrape/internal/flatten"
	"github.com/nao1215/docscrape/internal/metrics"
	"github.com/nao1215/docscrape/internal/model"
	"github.com/nao1215/docscrape/internal/storage"
)

// Step names as recorded in CrawlRun.PerformedSteps.
const (
	StepCrawl   = "crawl"
	StepFlatten = "flatten"
	StepUpload  = "upload"
	StepPersist = "persist"
)

// ErrNoTree is returned by steps that need a crawled tree when the run has none.
var ErrNoTree = errors.New("run has no page tree")

// CrawlStep crawls the run's seed and stores the tree on the run.
// An unreachable seed fails the step and leaves run.Root nil.
type CrawlStep struct {
	spider *crawler.Spider
	logger *slog.Logger
}

// NewCrawlStep creates a crawl step that uses spider.
func NewCrawlStep(spider *crawler.Spider, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{spider: spider, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, run *model.CrawlRun) error {
	run.MaxDepth = s.spider.MaxDepth()
	run.SameOrigin = s.spider.SameOrigin()

	root, err := s.spider.Crawl(ctx, run.SeedURL)
	if err != nil {
		return err
	}
	run.Root = root

	s.logger.Info("crawl completed",
		"seed", run.SeedURL,
		"pages", root.Count(),
		"depth", root.Depth(),
	)
	return nil
}

// FlattenStep converts the run's tree into indexable documents.
// A run without a tree gets an empty document list.
type FlattenStep struct {
	metrics *metrics.CrawlMetrics
	logger  *slog.Logger
}

// NewFlattenStep creates a flatten step. m may be nil.
func NewFlattenStep(m *metrics.CrawlMetrics, logger *slog.Logger) *FlattenStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlattenStep{metrics: m, logger: logger}
}

// Name returns the step name.
func (s *FlattenStep) Name() string {
	return StepFlatten
}

// Do executes the flatten step.
func (s *FlattenStep) Do(_ context.Context, run *model.CrawlRun) error {
	run.Documents = flatten.Flatten(run.Root)

	withoutText := run.PageCount() - len(run.Documents)
	s.metrics.RecordFlatten(len(run.Documents), withoutText)

	s.logger.Info("flattened pages",
		"seed", run.SeedURL,
		"documents", len(run.Documents),
		"pagesWithoutText", withoutText,
	)
	return nil
}

// UploadStep uploads the raw page tree under a fixed key.
type UploadStep struct {
	uploader storage.Uploader
	key      string
	logger   *slog.Logger
}

// NewUploadStep creates an upload step writing to key via uploader.
func NewUploadStep(uploader storage.Uploader, key string, logger *slog.Logger) *UploadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadStep{uploader: uploader, key: key, logger: logger}
}

// Name returns the step name.
func (s *UploadStep) Name() string {
	return StepUpload
}

// Do executes the upload step. A run without a tree is skipped when an
// earlier step already failed, and fails with ErrNoTree otherwise.
func (s *UploadStep) Do(ctx context.Context, run *model.CrawlRun) error {
	if run.Root == nil {
		if run.Failed() {
			s.logger.Debug("skipping upload of failed run", "seed", run.SeedURL)
			return nil
		}
		return ErrNoTree
	}

	location, err := s.uploader.UploadJSON(ctx, s.key, run.Root)
	if err != nil {
		return fmt.Errorf("failed to upload page tree: %w", err)
	}
	run.BlobLocation = location

	s.logger.Info("uploaded page tree",
		"seed", run.SeedURL,
		"location", location,
	)
	return nil
}

// PersistStep saves the run to the crawl database.
// It runs last so that the stored run includes every earlier result.
type PersistStep struct {
	db     *storage.CrawlDB
	logger *slog.Logger
}

// NewPersistStep creates a persist step saving to db.
func NewPersistStep(db *storage.CrawlDB, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return StepPersist
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, run *model.CrawlRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if err := s.db.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("saved run", "id", run.ID, "db", s.db.Path())
	return nil
}

// DefaultPipelineConfig holds the collaborators of the default pipeline.
type DefaultPipelineConfig struct {
	// SpiderOptions configure the crawler.
	SpiderOptions []crawler.SpiderOption

	// Uploader receives the raw tree. No upload step is added when nil.
	Uploader storage.Uploader

	// BlobKey is the key the tree is uploaded under.
	BlobKey string

	// DB stores the run. No persist step is added when nil.
	DB *storage.CrawlDB

	// Metrics records crawl and flatten counters. May be nil.
	Metrics *metrics.CrawlMetrics
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSpiderOptions adds crawler options.
func WithPipelineSpiderOptions(opts ...crawler.SpiderOption) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SpiderOptions = append(c.SpiderOptions, opts...)
	}
}

// WithPipelineUploader uploads the raw tree to key.
func WithPipelineUploader(uploader storage.Uploader, key string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Uploader = uploader
		c.BlobKey = key
	}
}

// WithPipelineDB persists runs to db.
func WithPipelineDB(db *storage.CrawlDB) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DB = db
	}
}

// WithPipelineMetrics records metrics to m.
func WithPipelineMetrics(m *metrics.CrawlMetrics) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Metrics = m
	}
}

// DefaultPipeline creates the crawl, flatten, upload and persist pipeline.
//
// The pipeline continues after a failed step so that a failed crawl is
// still flattened to an empty list and persisted; pipelineOpts may
// override this. The upload and persist steps are only added when their
// collaborators are configured.
func DefaultPipeline(client *http.Client, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(append([]Option{WithContinueOnError(true)}, pipelineOpts...)...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	spiderOpts := append([]crawler.SpiderOption{
		crawler.WithLogger(p.logger),
		crawler.WithMetrics(cfg.Metrics),
	}, cfg.SpiderOptions...)

	p.AddSteps(
		NewCrawlStep(crawler.NewSpider(client, spiderOpts...), p.logger),
		NewFlattenStep(cfg.Metrics, p.logger),
	)
	if cfg.Uploader != nil {
		p.AddStep(NewUploadStep(cfg.Uploader, cfg.BlobKey, p.logger))
	}
	if cfg.DB != nil {
		p.AddStep(NewPersistStep(cfg.DB, p.logger))
	}

	return p
}
