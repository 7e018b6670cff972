package index

// squaredL2 returns the squared Euclidean distance between two descriptors.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return sum
}

// squaredL2To is squaredL2 against a float64 cluster center.
func squaredL2To(a []float32, center []float64) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - center[i]
		sum += diff * diff
	}
	return sum
}

// meanRow averages rows column-wise. An empty input yields a zero vector of dim.
func meanRow(rows [][]float32, dim int) []float32 {
	mean := make([]float32, dim)
	if len(rows) == 0 {
		return mean
	}
	sum := make([]float64, dim)
	for _, row := range rows {
		for j, v := range row {
			sum[j] += float64(v)
		}
	}
	n := float64(len(rows))
	for j := range sum {
		mean[j] = float32(sum[j] / n)
	}
	return mean
}
