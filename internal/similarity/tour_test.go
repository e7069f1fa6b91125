package similarity

import (
	"math"
	"slices"
	"testing"
)

func identityRoute(n int) []int {
	route := make([]int, n)
	for i := range route {
		route[i] = i
	}
	return route
}

// lineMatrix builds distances between points on a line, so the optimal
// open path visits them in coordinate order.
func lineMatrix(coords []float64) Matrix {
	n := len(coords)
	dist := make(Matrix, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = math.Abs(coords[i] - coords[j])
		}
	}
	return dist
}

func TestTwoOptReturnsPermutation(t *testing.T) {
	coords := []float64{0.9, 0.1, 0.5, 0.2, 0.8, 0.4}
	dist := lineMatrix(coords)

	route := TwoOpt(len(coords), dist, 0.0001)

	if len(route) != len(coords) {
		t.Fatalf("route length %d, want %d", len(route), len(coords))
	}
	sorted := slices.Clone(route)
	slices.Sort(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("route %v is not a permutation of 0..%d", route, len(coords)-1)
		}
	}
}

func TestTwoOptNeverWorseThanIdentity(t *testing.T) {
	coords := []float64{0.7, 0.1, 0.9, 0.3, 0.5, 0.2, 0.8}
	dist := lineMatrix(coords)

	route := TwoOpt(len(coords), dist, 0.0001)

	identity := PathDistance(identityRoute(len(coords)), dist)
	optimized := PathDistance(route, dist)
	if optimized > identity {
		t.Errorf("optimized path %v longer than identity %v", optimized, identity)
	}
}

func TestTwoOptClustersSimilarItems(t *testing.T) {
	// Two tight clusters; a good path never alternates between them.
	coords := []float64{0.0, 10.0, 0.1, 10.1, 0.2, 10.2}
	dist := lineMatrix(coords)

	route := TwoOpt(len(coords), dist, 0.0001)

	// Count cluster crossings along the path; optimal is exactly one.
	crossings := 0
	for i := 0; i+1 < len(route); i++ {
		a, b := coords[route[i]] < 5, coords[route[i+1]] < 5
		if a != b {
			crossings++
		}
	}
	if crossings != 1 {
		t.Errorf("route %v crosses between clusters %d times, want 1", route, crossings)
	}
}

func TestTwoOptSmallInputs(t *testing.T) {
	for n := 0; n <= 3; n++ {
		dist := make(Matrix, n)
		for i := range dist {
			dist[i] = make([]float64, n)
		}
		route := TwoOpt(n, dist, 0.0001)
		if len(route) != n {
			t.Errorf("n=%d: route length %d", n, len(route))
		}
	}
}

func TestPathDistanceEpsilonFloor(t *testing.T) {
	if d := PathDistance(nil, nil); d <= 0 {
		t.Errorf("empty path distance %v, want strictly positive", d)
	}
}
