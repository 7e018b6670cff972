package index

// Vocabulary tree defaults
const (
	DEFAULT_BRANCHING      = 10
	DEFAULT_DEPTH          = 6
	DEFAULT_MAX_ITERATIONS = 100
	DEFAULT_ATTEMPTS       = 5
	DEFAULT_SEED           = 1
)

// NoSimilarity is the score of a comparison involving an all-zero histogram.
const NoSimilarity = 0.0

// internalLeafIndex marks nodes that are not leaves.
const internalLeafIndex = -1
