package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore is the Postgres-backed queue store, for deployments where
// the crawl queue is shared between machines.
type PostgresStore struct {
	db            *sql.DB
	minTextLength int
}

// NewPostgresStore connects to Postgres and initializes the queue schema.
func NewPostgresStore(connectionString string, minTextLength int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db, minTextLength: minTextLength}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id SERIAL PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		location TEXT,
		kind VARCHAR(10) NOT NULL DEFAULT 'html',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_crawled TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS queue (
		id SERIAL PRIMARY KEY,
		added_on TIMESTAMP NOT NULL DEFAULT NOW(),
		title TEXT NOT NULL,
		location TEXT,
		source_id INTEGER REFERENCES sources(id),
		url TEXT NOT NULL,
		url_hash VARCHAR(32) NOT NULL UNIQUE,
		label VARCHAR(50)
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

func (s *PostgresStore) EnabledSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, location, kind FROM sources WHERE enabled`)
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

func (s *PostgresStore) AddSource(ctx context.Context, url, location, kind string) error {
	if kind == "" {
		kind = "html"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (url, location, kind) VALUES ($1, $2, $3) ON CONFLICT (url) DO NOTHING`,
		url, location, kind)
	return err
}

func (s *PostgresStore) MarkSourcesCrawled(ctx context.Context, ids []int64) error {
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
		if _, err := tx.ExecContext(ctx, `UPDATE sources SET last_crawled = $1 WHERE id = $2`, now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Enqueue(ctx context.Context, sourceID int64, title, url, location string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue (added_on, title, location, source_id, url, url_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url_hash) DO NOTHING`,
		time.Now(), title, location, sourceID, url, urlHash(url))
	return err
}

func (s *PostgresStore) PendingArticles(ctx context.Context) ([]PendingArticle, error) {
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

func (s *PostgresStore) ReplaceURL(ctx context.Context, id int64, canonicalURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM queue WHERE url_hash = $1 AND id != $2`,
		urlHash(canonicalURL), id).Scan(&existing)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM content WHERE queue_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE id = $1`, id); err != nil {
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
		`UPDATE queue SET url = $1, url_hash = $2 WHERE id = $3`,
		canonicalURL, urlHash(canonicalURL), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) SaveContent(ctx context.Context, id int64, text *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content (queue_id, text) VALUES ($1, $2)
		ON CONFLICT (queue_id) DO UPDATE SET text = EXCLUDED.text`,
		id, text)
	return err
}

func (s *PostgresStore) UnlabeledDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, c.text FROM queue q
		JOIN content c ON c.queue_id = q.id
		WHERE q.label IS NULL AND c.text IS NOT NULL AND length(c.text) > $1
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

func (s *PostgresStore) MaxLabel(ctx context.Context) (int, bool, error) {
	var max sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(label) FROM queue WHERE label IS NOT NULL AND label != $1`,
		NoTextLabel).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	n, err := strconv.Atoi(max.String)
	if err != nil {
		return 0, false, fmt.Errorf("unparseable label %q: %w", max.String, err)
	}
	return n, true, nil
}

func (s *PostgresStore) AssignLabels(ctx context.Context, assignments []Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, `UPDATE queue SET label = $1 WHERE id = $2`, a.Label, a.ID); err != nil {
			return fmt.Errorf("assigning label %q to %d: %w", a.Label, a.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE queue SET label = $1 WHERE label IS NULL`, NoTextLabel); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) RecentQueue(ctx context.Context, window time.Duration) ([]QueueItem, error) {
	cutoff := time.Now().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, location, added_on, COALESCE(label, '') FROM queue
		WHERE added_on > $1
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
