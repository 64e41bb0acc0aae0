package cluster

import "math/rand"

// maxIterations caps the assign/recenter loop; convergence usually happens
// far earlier and is detected by an unchanged assignment pass.
const maxIterations = 50

// kmeans partitions points into k clusters. It returns one assignment index
// per point and the final centroids. Callers guarantee k >= 1, k <= len(points)
// and equal point dimensionality.
func kmeans(points [][]float32, k int, rng *rand.Rand) (assignments []int, centroids [][]float64) {
	centroids = seedCentroids(points, k, rng)
	assignments = make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		recenter(points, assignments, centroids)
	}
	return assignments, centroids
}

// seedCentroids runs k-means++: the first centroid is uniform random, each
// subsequent one is drawn with probability proportional to its squared
// distance from the nearest chosen centroid. When every remaining point sits
// exactly on a chosen centroid the weighted draw degenerates, so fall back to
// uniform random.
func seedCentroids(points [][]float32, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, toFloat64(points[rng.Intn(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = sqDistTo(p, centroids)
			total += dist[i]
		}

		var pick int
		if total == 0 {
			pick = rng.Intn(len(points))
		} else {
			target := rng.Float64() * total
			var cum float64
			for i, d := range dist {
				cum += d
				if cum >= target {
					pick = i
					break
				}
			}
		}
		centroids = append(centroids, toFloat64(points[pick]))
	}
	return centroids
}

// nearestCentroid returns the index of the closest centroid by squared
// Euclidean distance. Strict less-than comparison means ties go to the
// lowest-indexed centroid.
func nearestCentroid(p []float32, centroids [][]float64) int {
	best := 0
	bestDist := sqDist(p, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := sqDist(p, centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recenter replaces each centroid with the mean of its assigned points. A
// cluster with no members keeps a zero-vector centroid rather than being
// re-seeded; its slot survives but attracts nothing afterwards.
func recenter(points [][]float32, assignments []int, centroids [][]float64) {
	dims := len(centroids[0])
	counts := make([]int, len(centroids))
	for c := range centroids {
		centroids[c] = make([]float64, dims)
	}
	for i, p := range points {
		c := assignments[i]
		counts[c]++
		for d, v := range p {
			centroids[c][d] += float64(v)
		}
	}
	for c, n := range counts {
		if n == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] /= float64(n)
		}
	}
}

func sqDist(p []float32, centroid []float64) float64 {
	var sum float64
	for d, v := range p {
		diff := float64(v) - centroid[d]
		sum += diff * diff
	}
	return sum
}

func sqDistTo(p []float32, centroids [][]float64) float64 {
	min := sqDist(p, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := sqDist(p, centroids[c]); d < min {
			min = d
		}
	}
	return min
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
