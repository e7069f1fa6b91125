package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", 70)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSource(t *testing.T, s *SQLiteStore) int64 {
	t.Helper()
	ctx := context.Background()
	if err := s.AddSource(ctx, "https://news.example.com/seed", "", "html"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	sources, err := s.EnabledSources(ctx)
	if err != nil || len(sources) == 0 {
		t.Fatalf("EnabledSources: %v", err)
	}
	return sources[len(sources)-1].ID
}

func TestSourcesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddSource(ctx, "https://news.example.com", "Springfield, IL", "html"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	// Adding the same source twice is a no-op.
	if err := s.AddSource(ctx, "https://news.example.com", "Springfield, IL", "html"); err != nil {
		t.Fatalf("AddSource (duplicate): %v", err)
	}

	sources, err := s.EnabledSources(ctx)
	if err != nil {
		t.Fatalf("EnabledSources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	if sources[0].Kind != "html" || sources[0].Location != "Springfield, IL" {
		t.Errorf("unexpected source %+v", sources[0])
	}

	if err := s.MarkSourcesCrawled(ctx, []int64{sources[0].ID}); err != nil {
		t.Fatalf("MarkSourcesCrawled: %v", err)
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	srcID := seedSource(t, s)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Enqueue(ctx, srcID, "March downtown", "https://example.com/a", "Springfield"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	pending, err := s.PendingArticles(ctx)
	if err != nil {
		t.Fatalf("PendingArticles: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending articles, want 1", len(pending))
	}
}

func TestSaveContentClearsPending(t *testing.T) {
	s := newTestStore(t)
	srcID := seedSource(t, s)
	ctx := context.Background()

	if err := s.Enqueue(ctx, srcID, "March downtown", "https://example.com/a", ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	pending, _ := s.PendingArticles(ctx)
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}

	// A nil text is a placeholder: the article is done, just empty.
	if err := s.SaveContent(ctx, pending[0].ID, nil); err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	pending, _ = s.PendingArticles(ctx)
	if len(pending) != 0 {
		t.Errorf("placeholder did not clear pending state")
	}
}

func TestReplaceURLDeletesDuplicate(t *testing.T) {
	s := newTestStore(t)
	srcID := seedSource(t, s)
	ctx := context.Background()

	s.Enqueue(ctx, srcID, "First", "https://example.com/a", "")
	s.Enqueue(ctx, srcID, "Second", "https://example.com/b", "")
	pending, _ := s.PendingArticles(ctx)
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	// Second's canonical URL turns out to be First's URL.
	err := s.ReplaceURL(ctx, pending[1].ID, "https://example.com/a")
	if !errors.Is(err, ErrDuplicateURL) {
		t.Fatalf("ReplaceURL error = %v, want ErrDuplicateURL", err)
	}

	pending, _ = s.PendingArticles(ctx)
	if len(pending) != 1 {
		t.Errorf("duplicate entry was not removed, %d pending", len(pending))
	}
}

func TestReplaceURLRewrites(t *testing.T) {
	s := newTestStore(t)
	srcID := seedSource(t, s)
	ctx := context.Background()

	s.Enqueue(ctx, srcID, "First", "https://example.com/a?TM=1", "")
	pending, _ := s.PendingArticles(ctx)

	if err := s.ReplaceURL(ctx, pending[0].ID, "https://example.com/a"); err != nil {
		t.Fatalf("ReplaceURL: %v", err)
	}
	pending, _ = s.PendingArticles(ctx)
	if pending[0].URL != "https://example.com/a" {
		t.Errorf("URL not rewritten: %q", pending[0].URL)
	}
}

func TestSequencingQueries(t *testing.T) {
	s := newTestStore(t)
	srcID := seedSource(t, s)
	ctx := context.Background()

	long := strings.Repeat("The marchers filled the square. ", 5)
	short := "Too short."

	s.Enqueue(ctx, srcID, "Long article", "https://example.com/long", "")
	s.Enqueue(ctx, srcID, "Short article", "https://example.com/short", "")
	s.Enqueue(ctx, srcID, "Failed article", "https://example.com/failed", "")

	pending, _ := s.PendingArticles(ctx)
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	s.SaveContent(ctx, pending[0].ID, &long)
	s.SaveContent(ctx, pending[1].ID, &short)
	s.SaveContent(ctx, pending[2].ID, nil)

	docs, err := s.UnlabeledDocuments(ctx)
	if err != nil {
		t.Fatalf("UnlabeledDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != pending[0].ID {
		t.Fatalf("UnlabeledDocuments = %+v, want only the long article", docs)
	}

	if _, ok, err := s.MaxLabel(ctx); err != nil || ok {
		t.Fatalf("MaxLabel before assignment: ok=%v err=%v, want none", ok, err)
	}

	if err := s.AssignLabels(ctx, []Assignment{{ID: docs[0].ID, Label: "0"}}); err != nil {
		t.Fatalf("AssignLabels: %v", err)
	}

	max, ok, err := s.MaxLabel(ctx)
	if err != nil || !ok || max != 0 {
		t.Fatalf("MaxLabel = (%d, %v, %v), want (0, true, nil)", max, ok, err)
	}

	// The short and failed articles got the notext sentinel in the same
	// transaction.
	items, err := s.RecentQueue(ctx, time.Hour)
	if err != nil {
		t.Fatalf("RecentQueue: %v", err)
	}
	notext := 0
	for _, item := range items {
		if item.Label == NoTextLabel {
			notext++
		}
	}
	if notext != 2 {
		t.Errorf("got %d notext entries, want 2", notext)
	}

	// Once labeled, nothing is left to sequence.
	docs, _ = s.UnlabeledDocuments(ctx)
	if len(docs) != 0 {
		t.Errorf("documents remain unlabeled after assignment: %+v", docs)
	}
}

func TestRecentQueueOrdersByLabel(t *testing.T) {
	s := newTestStore(t)
	srcID := seedSource(t, s)
	ctx := context.Background()

	text := strings.Repeat("Protesters gathered near the capitol steps. ", 4)
	urls := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	for _, u := range urls {
		s.Enqueue(ctx, srcID, "Article "+u, u, "")
	}
	pending, _ := s.PendingArticles(ctx)
	for _, p := range pending {
		s.SaveContent(ctx, p.ID, &text)
	}

	// Assign labels out of queue order.
	s.AssignLabels(ctx, []Assignment{
		{ID: pending[2].ID, Label: "0"},
		{ID: pending[0].ID, Label: "1"},
		{ID: pending[1].ID, Label: "2"},
	})

	items, err := s.RecentQueue(ctx, time.Hour)
	if err != nil {
		t.Fatalf("RecentQueue: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Label > items[i].Label {
			t.Errorf("items not ordered by label: %q before %q", items[i-1].Label, items[i].Label)
		}
	}
}
