package index

import (
	"math"
	"math/rand/v2"
)

// kmeans clusters rows into k groups and returns each row's cluster label.
// Each attempt seeds with k-means++ and runs Lloyd iterations until the
// labels settle or maxIter is reached; the attempt with the lowest
// compactness (sum of squared distances to the assigned center) wins.
// Clusters may end up empty.
func kmeans(rows [][]float32, k, maxIter, attempts int, rng *rand.Rand) []int {
	if attempts < 1 {
		attempts = 1
	}
	var best []int
	bestCompactness := math.Inf(1)
	for a := 0; a < attempts; a++ {
		centers := seedPlusPlus(rows, k, rng)
		labels, compactness := lloyd(rows, centers, maxIter)
		if best == nil || compactness < bestCompactness {
			best = labels
			bestCompactness = compactness
		}
	}
	return best
}

// seedPlusPlus picks k initial centers, each new one drawn with probability
// proportional to its squared distance from the nearest center chosen so far.
func seedPlusPlus(rows [][]float32, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centers := make([][]float64, 0, k)
	centers = append(centers, toFloat64(rows[rng.IntN(n)]))

	nearest := make([]float64, n)
	for i, row := range rows {
		nearest[i] = squaredL2To(row, centers[0])
	}

	for len(centers) < k {
		var total float64
		for _, d := range nearest {
			total += d
		}

		next := n - 1
		if total <= 0 {
			// every row coincides with a center
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			for i, d := range nearest {
				target -= d
				if target < 0 {
					next = i
					break
				}
			}
		}

		center := toFloat64(rows[next])
		centers = append(centers, center)
		for i, row := range rows {
			if d := squaredL2To(row, center); d < nearest[i] {
				nearest[i] = d
			}
		}
	}
	return centers
}

func lloyd(rows [][]float32, centers [][]float64, maxIter int) ([]int, float64) {
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; ; iter++ {
		changed := assign(rows, centers, labels)
		if !changed || iter >= maxIter {
			break
		}
		recenter(rows, labels, centers)
	}

	var compactness float64
	for i, row := range rows {
		compactness += squaredL2To(row, centers[labels[i]])
	}
	return labels, compactness
}

// assign labels every row with its nearest center, ties to the lower index.
func assign(rows [][]float32, centers [][]float64, labels []int) bool {
	changed := false
	for i, row := range rows {
		best := 0
		bestDist := squaredL2To(row, centers[0])
		for c := 1; c < len(centers); c++ {
			if d := squaredL2To(row, centers[c]); d < bestDist {
				best = c
				bestDist = d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// recenter moves each center to the mean of its rows. Empty clusters keep
// their previous center.
func recenter(rows [][]float32, labels []int, centers [][]float64) {
	dim := len(centers[0])
	sums := make([][]float64, len(centers))
	counts := make([]int, len(centers))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, row := range rows {
		c := labels[i]
		counts[c]++
		for j, v := range row {
			sums[c][j] += float64(v)
		}
	}
	for c := range centers {
		if counts[c] == 0 {
			continue
		}
		for j := range centers[c] {
			centers[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func toFloat64(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}
