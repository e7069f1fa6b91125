package similarity

import (
	"log/slog"
	"sync"

	"github.com/newsherd/newsherd/internal/metrics"
)

// Matrix is a symmetric pairwise dissimilarity matrix with a zero diagonal.
type Matrix [][]float64

// Signatures computes a signature per text on a bounded worker pool. Each
// computation reads one text and writes one output slot, so no locking is
// needed beyond the pool itself.
func Signatures(texts []string, shingleLength, workers int) ([]Signature, error) {
	if shingleLength <= 0 {
		// Fail fast before spinning up workers.
		if _, err := NewSignature("", shingleLength); err != nil {
			return nil, err
		}
	}
	if workers < 1 {
		workers = 1
	}

	sigs := make([]Signature, len(texts))

	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sig, err := NewSignature(texts[i], shingleLength)
				if err != nil {
					// Unreachable: shingle length was validated above.
					continue
				}
				sigs[i] = sig
			}
		}()
	}

	for i := range texts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return sigs, nil
}

// BuildMatrix computes the pairwise distance 1 - Jaccard for every unordered
// pair of signatures, computing each pair once. A pair where one or both
// signatures are empty cannot be compared; it is recorded as maximal
// distance and the batch continues.
func BuildMatrix(sigs []Signature) Matrix {
	n := len(sigs)
	dist := make(Matrix, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if len(sigs[i]) == 0 || len(sigs[j]) == 0 {
				slog.Warn("pairwise comparison failed", "first", i, "second", j)
				metrics.Global.IncrementPairwiseFailures()
				dist[i][j] = 1
				dist[j][i] = 1
				continue
			}

			d := 1 - Jaccard(sigs[i], sigs[j])
			if d < 0 {
				d = 0
			} else if d > 1 {
				d = 1
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	return dist
}
