package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/docscrape/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "docscrape.db"

// ErrRunNotFound is returned by DeleteRun when no run has the given ID.
var ErrRunNotFound = errors.New("crawl run not found")

// CrawlDB stores crawl runs in a SQLite database.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl; tree_json holds the full page tree.
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		same_origin INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		document_count INTEGER NOT NULL DEFAULT 0,
		blob_location TEXT,
		steps TEXT,
		error TEXT,
		tree_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages of a run in pre-order.
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		parent_url TEXT,
		text_length INTEGER NOT NULL,
		table_count INTEGER NOT NULL,
		image_count INTEGER NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Flattened documents of a run in output order.
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		doc_id TEXT NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id, position);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary describes a stored run without its tree and documents.
type RunSummary struct {
	ID            string
	SeedURL       string
	MaxDepth      int
	StartedAt     time.Time
	FinishedAt    time.Time
	PageCount     int
	DocumentCount int
	BlobLocation  string
	Error         string
}

// PageRow is the stored summary of one crawled page.
type PageRow struct {
	URL        string
	Depth      int
	ParentURL  string
	TextLength int
	TableCount int
	ImageCount int
}

// SaveRun stores run with its pages and documents in one transaction.
// Saving a run with an existing ID replaces it.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.CrawlRun) (err error) {
	treeJSON, err := json.Marshal(run.Root)
	if err != nil {
		return fmt.Errorf("failed to serialize tree: %w", err)
	}
	stepsJSON, err := json.Marshal(run.PerformedSteps)
	if err != nil {
		return fmt.Errorf("failed to serialize steps: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteRunRows(ctx, tx, run.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, seed_url, max_depth, same_origin, started_at, finished_at,
		page_count, document_count, blob_location, steps, error, tree_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.SeedURL,
		run.MaxDepth,
		run.SameOrigin,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.PageCount(),
		len(run.Documents),
		run.BlobLocation,
		string(stepsJSON),
		run.ErrorMessage,
		string(treeJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl run: %w", err)
	}

	if err = insertPages(ctx, tx, run.ID, run.Root); err != nil {
		return err
	}
	if err = insertDocuments(ctx, tx, run.ID, run.Documents); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return nil
}

func insertPages(ctx context.Context, tx *sql.Tx, runID string, root *model.PageRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, position, url, depth, parent_url, text_length, table_count, image_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	var insertErr error
	position := 0
	var visit func(page *model.PageRecord, parentURL string, depth int)
	visit = func(page *model.PageRecord, parentURL string, depth int) {
		if page == nil || insertErr != nil {
			return
		}
		_, insertErr = stmt.ExecContext(ctx,
			runID,
			position,
			page.URL,
			depth,
			parentURL,
			len(page.Text),
			len(page.Tables),
			len(page.Images),
		)
		if insertErr != nil {
			insertErr = fmt.Errorf("failed to insert page %s: %w", page.URL, insertErr)
			return
		}
		position++
		for _, sub := range page.Subpages {
			visit(sub, page.URL, depth+1)
		}
	}
	visit(root, "", 0)

	return insertErr
}

func insertDocuments(ctx context.Context, tx *sql.Tx, runID string, docs []model.IndexableDocument) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO documents (run_id, position, doc_id, text, metadata)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata of %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, doc.ID, doc.Text, string(metadataJSON)); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}
	}
	return nil
}

func deleteRunRows(ctx context.Context, tx *sql.Tx, runID string) error {
	for _, table := range []string{"documents", "pages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("failed to delete %s of run %s: %w", table, runID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM crawl_runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

// GetRun retrieves a run with its tree and documents.
// It returns nil, nil when no run has the given ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.CrawlRun, error) {
	query := `
	SELECT id, seed_url, max_depth, same_origin, started_at, finished_at,
		blob_location, steps, error, tree_json
	FROM crawl_runs
	WHERE id = ?
	`

	var (
		run        model.CrawlRun
		startedAt  string
		finishedAt sql.NullString
		blob       sql.NullString
		steps      sql.NullString
		errMsg     sql.NullString
		treeJSON   sql.NullString
	)
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.SeedURL,
		&run.MaxDepth,
		&run.SameOrigin,
		&startedAt,
		&finishedAt,
		&blob,
		&steps,
		&errMsg,
		&treeJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)
	run.BlobLocation = blob.String
	run.ErrorMessage = errMsg.String

	run.PerformedSteps = make([]string, 0)
	if steps.String != "" {
		if err := json.Unmarshal([]byte(steps.String), &run.PerformedSteps); err != nil {
			return nil, fmt.Errorf("failed to parse steps: %w", err)
		}
	}
	if treeJSON.String != "" && treeJSON.String != "null" {
		var root model.PageRecord
		if err := json.Unmarshal([]byte(treeJSON.String), &root); err != nil {
			return nil, fmt.Errorf("failed to parse tree: %w", err)
		}
		run.Root = &root
	}

	run.Documents, err = cdb.GetDocuments(ctx, id)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// GetDocuments returns the documents of a run in their original order.
func (cdb *CrawlDB) GetDocuments(ctx context.Context, runID string) ([]model.IndexableDocument, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT doc_id, text, metadata FROM documents
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.IndexableDocument, 0)
	for rows.Next() {
		var doc model.IndexableDocument
		var metadataJSON sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Metadata = make(map[string]string)
		if metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata of %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// GetPages returns the stored page rows of a run in pre-order.
func (cdb *CrawlDB) GetPages(ctx context.Context, runID string) ([]PageRow, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, depth, parent_url, text_length, table_count, image_count
	FROM pages
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	pages := make([]PageRow, 0)
	for rows.Next() {
		var p PageRow
		var parent sql.NullString
		if err := rows.Scan(&p.URL, &p.Depth, &parent, &p.TextLength, &p.TableCount, &p.ImageCount); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.ParentURL = parent.String
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// ListRuns returns run summaries, newest first. An empty seedURL lists the
// runs of every seed. limit <= 0 means no limit.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seedURL string, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, seed_url, max_depth, started_at, finished_at,
		page_count, document_count, blob_location, error
	FROM crawl_runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if seedURL != "" {
		query += " AND seed_url = ?"
		args = append(args, seedURL)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunSummary, 0)
	for rows.Next() {
		var (
			s          RunSummary
			startedAt  string
			finishedAt sql.NullString
			blob       sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(
			&s.ID,
			&s.SeedURL,
			&s.MaxDepth,
			&startedAt,
			&finishedAt,
			&s.PageCount,
			&s.DocumentCount,
			&blob,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.FinishedAt = parseTimestamp(finishedAt.String)
		s.BlobLocation = blob.String
		s.Error = errMsg.String
		results = append(results, s)
	}

	return results, rows.Err()
}

// GetLatestRun returns the most recent run of seedURL, or nil, nil if the
// seed has never been crawled.
func (cdb *CrawlDB) GetLatestRun(ctx context.Context, seedURL string) (*model.CrawlRun, error) {
	runs, err := cdb.ListRuns(ctx, seedURL, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return cdb.GetRun(ctx, runs[0].ID)
}

// DeleteRun removes a run with its pages and documents.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id string) (err error) {
	var exists int
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM crawl_runs WHERE id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteRunRows(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// formatTimestamp stores times in UTC with nanoseconds, so that text
// ordering matches time ordering. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampLayout is a fixed-width RFC 3339 layout.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that may be stored.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite CURRENT_TIMESTAMP
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
