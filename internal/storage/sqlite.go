package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/lexsearch/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	memory := dbPath == ":memory:"
	if dir := filepath.Dir(dbPath); !memory && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_type TEXT NOT NULL,
		title TEXT,
		document_type TEXT,
		jurisdiction TEXT,
		status TEXT NOT NULL,
		status_reason TEXT,
		text_extracted INTEGER NOT NULL DEFAULT 0,
		extraction_method TEXT,
		summary TEXT,
		date_published TIMESTAMP,
		content TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS chunks (
		document_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		text TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		char_count INTEGER NOT NULL,
		page_number INTEGER,
		section_title TEXT,
		concepts TEXT,
		citations TEXT,
		importance_score REAL,
		PRIMARY KEY (document_id, ordinal),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS search_log (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		mode TEXT NOT NULL,
		results INTEGER NOT NULL,
		degraded INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_search_log_created_at ON search_log(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, filename, file_type, title, document_type, jurisdiction, status, status_reason,
	text_extracted, extraction_method, summary, date_published, content, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc       models.Document
		status    string
		title     sql.NullString
		docType   sql.NullString
		region    sql.NullString
		reason    sql.NullString
		method    sql.NullString
		summary   sql.NullString
		content   sql.NullString
		metadata  sql.NullString
		published sql.NullTime
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.FileType, &title, &docType, &region, &status, &reason,
		&doc.TextExtracted, &method, &summary, &published, &content, &metadata, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Title = title.String
	doc.DocumentType = docType.String
	doc.Jurisdiction = region.String
	doc.Status = models.Status(status)
	doc.StatusReason = reason.String
	doc.ExtractionMethod = method.String
	doc.Summary = summary.String
	doc.Content = content.String
	if published.Valid {
		t := published.Time.UTC()
		doc.DatePublished = &t
	}
	if metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateDocument inserts a document. A missing status defaults to pending.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FileType, doc.Title, doc.DocumentType, doc.Jurisdiction,
		string(doc.Status), doc.StatusReason, doc.TextExtracted, doc.ExtractionMethod, doc.Summary,
		nullTime(doc.DatePublished), doc.Content, string(metadataJSON), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document by ID or models.ErrNotFound.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument overwrites every mutable column of an existing document.
func (s *SQLiteStorage) UpdateDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	doc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET filename = ?, file_type = ?, title = ?, document_type = ?, jurisdiction = ?,
		 status = ?, status_reason = ?, text_extracted = ?, extraction_method = ?, summary = ?,
		 date_published = ?, content = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		doc.Filename, doc.FileType, doc.Title, doc.DocumentType, doc.Jurisdiction,
		string(doc.Status), doc.StatusReason, doc.TextExtracted, doc.ExtractionMethod, doc.Summary,
		nullTime(doc.DatePublished), doc.Content, string(metadataJSON), doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, models.ErrNotFound)
	}
	return nil
}

// UpdateDocumentStatus sets the processing status and its reason.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id string, status models.Status, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, status_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}

// ListDocuments returns documents newest first. Content is omitted.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Replace(documentColumns, "content", "NULL", 1)+`
		 FROM documents ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ReplaceChunks swaps the document's chunk sequence in one transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, docID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to clear chunks of %s: %w", docID, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, ordinal, text, word_count, char_count, page_number,
		 section_title, concepts, citations, importance_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.DocumentID != docID {
			return fmt.Errorf("chunk %s does not belong to document %s", c.Ref(), docID)
		}
		concepts, _ := json.Marshal(nonNil(c.Concepts))
		citations, _ := json.Marshal(nonNil(c.Citations))
		if _, err := stmt.ExecContext(ctx, c.DocumentID, c.Ordinal, c.Text, c.WordCount, c.CharCount,
			c.PageNumber, c.SectionTitle, string(concepts), string(citations), c.ImportanceScore); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.Ref(), err)
		}
	}
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const chunkSelect = `SELECT c.document_id, c.ordinal, c.text, c.word_count, c.char_count, c.page_number,
	c.section_title, c.concepts, c.citations, c.importance_score,
	d.title, d.document_type, d.jurisdiction, d.date_published
	FROM chunks c JOIN documents d ON d.id = c.document_id`

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	defer rows.Close()
	chunks := make([]*models.Chunk, 0)
	for rows.Next() {
		var (
			c          models.Chunk
			page       sql.NullInt64
			section    sql.NullString
			concepts   sql.NullString
			citations  sql.NullString
			importance sql.NullFloat64
			title      sql.NullString
			docType    sql.NullString
			region     sql.NullString
			published  sql.NullTime
		)
		if err := rows.Scan(&c.DocumentID, &c.Ordinal, &c.Text, &c.WordCount, &c.CharCount, &page,
			&section, &concepts, &citations, &importance, &title, &docType, &region, &published); err != nil {
			return nil, err
		}
		c.PageNumber = int(page.Int64)
		c.SectionTitle = section.String
		c.ImportanceScore = importance.Float64
		c.Title = title.String
		c.DocumentType = docType.String
		c.Jurisdiction = region.String
		if concepts.String != "" {
			_ = json.Unmarshal([]byte(concepts.String), &c.Concepts)
		}
		if citations.String != "" {
			_ = json.Unmarshal([]byte(citations.String), &c.Citations)
		}
		if published.Valid {
			t := published.Time.UTC()
			c.DatePublished = &t
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// ListChunks returns the document's chunks in ordinal order with document fields flattened in.
func (s *SQLiteStorage) ListChunks(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE c.document_id = ? ORDER BY c.ordinal`, docID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// SearchChunksByCitation returns chunks whose text or citation list contains needle,
// case-insensitively.
func (s *SQLiteStorage) SearchChunksByCitation(ctx context.Context, needle string, limit int) ([]*models.Chunk, error) {
	needle = strings.TrimSpace(needle)
	if needle == "" || limit <= 0 {
		return []*models.Chunk{}, nil
	}
	pattern := "%" + likeEscaper.Replace(needle) + "%"
	rows, err := s.db.QueryContext(ctx,
		chunkSelect+` WHERE c.text LIKE ? ESCAPE '\' OR c.citations LIKE ? ESCAPE '\'
		 ORDER BY c.document_id, c.ordinal LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DistinctValues lists the values present for document_type, jurisdiction or concepts
// among completed documents, sorted.
func (s *SQLiteStorage) DistinctValues(ctx context.Context, field string) ([]string, error) {
	var q string
	switch field {
	case "document_type", "jurisdiction":
		q = `SELECT DISTINCT ` + field + ` FROM documents
			 WHERE status = 'completed' AND ` + field + ` IS NOT NULL AND ` + field + ` != ''
			 ORDER BY 1`
	case "concepts":
		q = `SELECT DISTINCT j.value FROM chunks c, json_each(c.concepts) j ORDER BY 1`
	default:
		return nil, models.NewValidationError("field", "no distinct values for %q", field)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// DateRange returns the earliest and latest publication dates, nil when none are known.
func (s *SQLiteStorage) DateRange(ctx context.Context) (*time.Time, *time.Time, error) {
	bound := func(order string) (*time.Time, error) {
		var t sql.NullTime
		err := s.db.QueryRowContext(ctx,
			`SELECT date_published FROM documents WHERE date_published IS NOT NULL
			 ORDER BY date_published `+order+` LIMIT 1`).Scan(&t)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !t.Valid) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		v := t.Time.UTC()
		return &v, nil
	}
	from, err := bound("ASC")
	if err != nil {
		return nil, nil, err
	}
	to, err := bound("DESC")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// LogSearch appends to the search log.
func (s *SQLiteStorage) LogSearch(ctx context.Context, entry *models.SearchLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_log (id, query, mode, results, degraded, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Query, string(entry.Mode), entry.Results, entry.Degraded, entry.DurationMS, entry.CreatedAt,
	)
	return err
}

// RecentSearches returns the newest search log entries.
func (s *SQLiteStorage) RecentSearches(ctx context.Context, limit int) ([]*models.SearchLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, mode, results, degraded, duration_ms, created_at
		 FROM search_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]*models.SearchLogEntry, 0)
	for rows.Next() {
		var (
			e    models.SearchLogEntry
			mode string
		)
		if err := rows.Scan(&e.ID, &e.Query, &mode, &e.Results, &e.Degraded, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Mode = models.SearchMode(mode)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountDocumentsByStatus returns document counts keyed by status.
func (s *SQLiteStorage) CountDocumentsByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[models.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
