package banksy

// euclideanSumOfSquares returns the squared Euclidean distance between two
// equal-length vectors. The sqrt is skipped so tree pruning and centroid
// comparisons stay cheap; callers that need the true distance take it
// themselves.
func euclideanSumOfSquares(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
