package similarity

// pathEpsilon keeps path lengths strictly positive so the relative
// improvement factor never divides by zero.
const pathEpsilon = 1e-7

// PathDistance sums the adjacent distances along an open route.
func PathDistance(route []int, dist Matrix) float64 {
	total := pathEpsilon
	for i := 0; i+1 < len(route); i++ {
		total += dist[route[i]][route[i+1]]
	}
	return total
}

// TwoOpt finds a short open path visiting all n items exactly once, using
// the 2-opt heuristic over the given distance matrix. Starting from the
// identity ordering, it repeatedly reverses sub-paths that shorten the
// route (first improvement, continuing the scan from the updated route)
// and sweeps until the relative improvement of a full sweep drops to or
// below improvementThreshold. The result is a permutation of 0..n-1; it
// approximates, not attains, the shortest path.
func TwoOpt(n int, dist Matrix, improvementThreshold float64) []int {
	route := make([]int, n)
	for i := range route {
		route[i] = i
	}

	best := PathDistance(route, dist)
	improvement := 1.0

	for improvement > improvementThreshold {
		toBeat := best

		for i := 1; i < n-2; i++ {
			for k := i + 1; k < n; k++ {
				candidate := reverseSegment(route, i, k)
				if d := PathDistance(candidate, dist); d < best {
					route = candidate
					best = d
				}
			}
		}

		improvement = 1 - best/toBeat
	}

	return route
}

// reverseSegment returns a copy of route with the segment [i, k] reversed.
func reverseSegment(route []int, i, k int) []int {
	out := make([]int, len(route))
	copy(out, route[:i])
	for n := 0; n <= k-i; n++ {
		out[i+n] = route[k-n]
	}
	copy(out[k+1:], route[k+1:])
	return out
}
