package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is the default queue store, backed by a local SQLite file.
type SQLiteStore struct {
	db            *sql.DB
	minTextLength int
}

// NewSQLiteStore opens (or creates) the queue database at path. Use
// ":memory:" for an in-memory store. minTextLength is the shortest
// extracted text the sequencer considers usable.
func NewSQLiteStore(path string, minTextLength int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, minTextLength: minTextLength}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		location TEXT,
		kind TEXT NOT NULL DEFAULT 'html',
		enabled INTEGER NOT NULL DEFAULT 1,
		last_crawled TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		added_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		title TEXT NOT NULL,
		location TEXT,
		source_id INTEGER REFERENCES sources(id),
		url TEXT NOT NULL,
		url_hash TEXT NOT NULL UNIQUE,
		label TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_queue_label ON queue(label);
	CREATE INDEX IF NOT EXISTS idx_queue_added_on ON queue(added_on);

	CREATE TABLE IF NOT EXISTS content (
		queue_id INTEGER PRIMARY KEY REFERENCES queue(id),
		text TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) EnabledSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, location, kind FROM sources WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		var location sql.NullString
		if err := rows.Scan(&src.ID, &src.URL, &location, &src.Kind); err != nil {
			return nil, err
		}
		src.Location = location.String
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *SQLiteStore) AddSource(ctx context.Context, url, location, kind string) error {
	if kind == "" {
		kind = "html"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sources (url, location, kind) VALUES (?, ?, ?)`,
		url, location, kind)
	return err
}

func (s *SQLiteStore) MarkSourcesCrawled(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE sources SET last_crawled = ? WHERE id = ?`, now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Enqueue(ctx context.Context, sourceID int64, title, url, location string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO queue (added_on, title, location, source_id, url, url_hash) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now(), title, location, sourceID, url, urlHash(url))
	return err
}

func (s *SQLiteStore) PendingArticles(ctx context.Context) ([]PendingArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url FROM queue
		WHERE NOT EXISTS (SELECT 1 FROM content WHERE content.queue_id = queue.id)
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingArticle
	for rows.Next() {
		var p PendingArticle
		if err := rows.Scan(&p.ID, &p.URL); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// ReplaceURL rewrites a queue entry's URL to the canonical one discovered
// during extraction. If another entry already holds that URL, this entry is
// removed instead and ErrDuplicateURL is returned.
func (s *SQLiteStore) ReplaceURL(ctx context.Context, id int64, canonicalURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM queue WHERE url_hash = ? AND id != ?`,
		urlHash(canonicalURL), id).Scan(&existing)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM content WHERE queue_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE id = ?`, id); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		return ErrDuplicateURL
	case err != sql.ErrNoRows:
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE queue SET url = ?, url_hash = ? WHERE id = ?`,
		canonicalURL, urlHash(canonicalURL), id); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveContent stores extracted text for a queue entry. A nil text writes an
// explicit placeholder row so failed articles are not crawled again.
func (s *SQLiteStore) SaveContent(ctx context.Context, id int64, text *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content (queue_id, text) VALUES (?, ?)
		ON CONFLICT (queue_id) DO UPDATE SET text = excluded.text`,
		id, text)
	return err
}

func (s *SQLiteStore) UnlabeledDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, c.text FROM queue q
		JOIN content c ON c.queue_id = q.id
		WHERE q.label IS NULL AND c.text IS NOT NULL AND length(c.text) > ?
		ORDER BY q.id ASC`, s.minTextLength)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Text); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) MaxLabel(ctx context.Context) (int, bool, error) {
	var max sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(label) FROM queue WHERE label IS NOT NULL AND label != ?`,
		NoTextLabel).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	// Labels are zero-padded, so the lexicographic max is the numeric max.
	n, err := strconv.Atoi(max.String)
	if err != nil {
		return 0, false, fmt.Errorf("unparseable label %q: %w", max.String, err)
	}
	return n, true, nil
}

// AssignLabels writes the computed labels and marks every remaining
// unlabeled entry with the notext sentinel, all in one transaction.
func (s *SQLiteStore) AssignLabels(ctx context.Context, assignments []Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, `UPDATE queue SET label = ? WHERE id = ?`, a.Label, a.ID); err != nil {
			return fmt.Errorf("assigning label %q to %d: %w", a.Label, a.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE queue SET label = ? WHERE label IS NULL`, NoTextLabel); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentQueue(ctx context.Context, window time.Duration) ([]QueueItem, error) {
	cutoff := time.Now().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, location, added_on, COALESCE(label, '') FROM queue
		WHERE added_on > ?
		ORDER BY label ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		var item QueueItem
		var location sql.NullString
		if err := rows.Scan(&item.ID, &item.Title, &item.URL, &location, &item.AddedOn, &item.Label); err != nil {
			return nil, err
		}
		item.Location = location.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
