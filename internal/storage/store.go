// Package storage persists the crawl queue: sources to crawl, queued
// article links, extracted article text and the similarity labels assigned
// by the sequencer. Two backends are provided, SQLite (default) and
// Postgres.
package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"
)

// NoTextLabel is the sentinel label for queue entries with no usable
// article text.
const NoTextLabel = "notext"

// ErrDuplicateURL is returned by ReplaceURL when the canonical URL already
// belongs to another queue entry; the caller's entry has been removed.
var ErrDuplicateURL = errors.New("url already queued")

// Source is a news page or feed to crawl for article links.
type Source struct {
	ID       int64
	URL      string
	Location string
	Kind     string // "html" or "rss"
}

// QueueItem is one queued article link.
type QueueItem struct {
	ID       int64
	Title    string
	URL      string
	Location string
	AddedOn  time.Time
	Label    string
}

// PendingArticle is a queued link whose content has not been fetched yet.
type PendingArticle struct {
	ID  int64
	URL string
}

// Document pairs a queue entry with its extracted text for sequencing.
type Document struct {
	ID   int64
	Text string
}

// Assignment is a computed label for one document.
type Assignment struct {
	ID    int64
	Label string
}

// Store is the document queue store used by the crawler, the sequencer and
// the digest mailer. AssignLabels must be transactional: either the whole
// batch of labels becomes visible or none of it does.
type Store interface {
	EnabledSources(ctx context.Context) ([]Source, error)
	AddSource(ctx context.Context, url, location, kind string) error
	MarkSourcesCrawled(ctx context.Context, ids []int64) error

	Enqueue(ctx context.Context, sourceID int64, title, url, location string) error
	PendingArticles(ctx context.Context) ([]PendingArticle, error)
	ReplaceURL(ctx context.Context, id int64, canonicalURL string) error
	SaveContent(ctx context.Context, id int64, text *string) error

	UnlabeledDocuments(ctx context.Context) ([]Document, error)
	MaxLabel(ctx context.Context) (int, bool, error)
	AssignLabels(ctx context.Context, assignments []Assignment) error

	RecentQueue(ctx context.Context, window time.Duration) ([]QueueItem, error)

	Close() error
}

// urlHash is the stable queue-dedup key for an article URL.
func urlHash(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
