package index

// Posting records how many of an image's descriptors were routed to a leaf.
type Posting struct {
	Image     int
	Frequency int
}

// Node is one cluster of the vocabulary tree.
type Node struct {
	Level    int
	Centroid []float32
	Children []*Node
	// LeafIndex is the visual word id, or -1 for internal nodes.
	LeafIndex int
	// Weight is ln(N/n) where n counts the images with descriptors in this node.
	Weight   float64
	Postings []Posting
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Word is the result of quantizing one descriptor.
type Word struct {
	Index  int
	Weight float64
}

// countImageRuns returns 1 plus the number of boundaries between runs of
// equal image tags. Tags are grouped by image, so for non-empty input this is
// the number of distinct images. Empty input also counts as 1.
func countImageRuns(tags []int) int {
	count := 1
	for i := 1; i < len(tags); i++ {
		if tags[i] != tags[i-1] {
			count++
		}
	}
	return count
}

// buildPostings collapses contiguous tag runs into per-image frequencies.
func buildPostings(tags []int) []Posting {
	var postings []Posting
	for i, tag := range tags {
		if i > 0 && tag == tags[i-1] {
			postings[len(postings)-1].Frequency++
			continue
		}
		postings = append(postings, Posting{Image: tag, Frequency: 1})
	}
	return postings
}
