// Package sequencer orders a batch of extracted articles so that
// near-duplicates sit next to each other, then persists the resulting
// labels through the queue store.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/newsherd/newsherd/internal/metrics"
	"github.com/newsherd/newsherd/internal/paragraphs"
	"github.com/newsherd/newsherd/internal/similarity"
	"github.com/newsherd/newsherd/internal/storage"
)

// Options tune the similarity computation.
type Options struct {
	ShingleLength        int
	ImprovementThreshold float64
	Concurrency          int
}

// DefaultOptions match the reference parameters of the sorting algorithm.
func DefaultOptions() Options {
	return Options{
		ShingleLength:        similarity.DefaultShingleLength,
		ImprovementThreshold: 0.0001,
		Concurrency:          8,
	}
}

// Store is the slice of the queue store the sequencer needs.
type Store interface {
	UnlabeledDocuments(ctx context.Context) ([]storage.Document, error)
	MaxLabel(ctx context.Context) (int, bool, error)
	AssignLabels(ctx context.Context, assignments []storage.Assignment) error
}

// Labels computes the zero-padded decimal labels for a tour of length n
// starting at offset. The width covers the whole label space including
// pre-existing labels, so lexicographic order always matches numeric order.
func Labels(n, offset int) []string {
	if n == 0 {
		return nil
	}

	digits := 1 + int(math.Floor(math.Log10(float64(offset+n))))
	labels := make([]string, n)
	for p := 0; p < n; p++ {
		labels[p] = fmt.Sprintf("%0*d", digits, p+offset)
	}
	return labels
}

// Sequence fetches the unlabeled documents, orders them by similarity and
// assigns labels in one transactional batch. Documents without usable text
// are excluded from the tour; the store marks them with the notext sentinel
// inside the same transaction.
func Sequence(ctx context.Context, store Store, opts Options) error {
	docs, err := store.UnlabeledDocuments(ctx)
	if err != nil {
		return fmt.Errorf("fetching unlabeled documents: %w", err)
	}
	slog.Debug("fetched documents for sorting", "count", len(docs))

	if len(docs) == 0 {
		// Still give notext labels to queue entries without usable text.
		return store.AssignLabels(ctx, nil)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = paragraphs.CleanText(doc.Text)
	}

	sigs, err := similarity.Signatures(texts, opts.ShingleLength, opts.Concurrency)
	if err != nil {
		return err
	}

	dist := similarity.BuildMatrix(sigs)
	slog.Info("calculated distance matrix", "documents", len(docs))

	route := similarity.TwoOpt(len(docs), dist, opts.ImprovementThreshold)
	metrics.Global.IncrementToursComputed()
	slog.Info("tour computed",
		"documents", len(docs),
		"distance", similarity.PathDistance(route, dist))

	offset := 0
	if max, ok, err := store.MaxLabel(ctx); err != nil {
		return fmt.Errorf("reading max label: %w", err)
	} else if ok {
		offset = max + 1
	}

	labels := Labels(len(route), offset)
	assignments := make([]storage.Assignment, len(route))
	for p, docIndex := range route {
		assignments[p] = storage.Assignment{ID: docs[docIndex].ID, Label: labels[p]}
	}

	if err := store.AssignLabels(ctx, assignments); err != nil {
		return fmt.Errorf("persisting labels: %w", err)
	}
	metrics.Global.AddLabelsAssigned(len(assignments))
	slog.Debug("saved article sort order", "labels", len(assignments), "offset", offset)

	return nil
}
