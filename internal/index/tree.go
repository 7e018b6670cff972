package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/twmb/murmur3"

	"imgsearch/internal/feature"
	pkgerrors "imgsearch/pkg/errors"
	"imgsearch/pkg/logger"
)

// BuildOptions controls hierarchical k-means. Zero Branching, MaxIterations
// and Attempts take the defaults; a zero Depth makes the root the only leaf.
type BuildOptions struct {
	Branching     int
	Depth         int
	MaxIterations int
	Attempts      int
	Seed          uint64
}

// DefaultBuildOptions returns the stock 10-way, 6-level configuration.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Branching:     DEFAULT_BRANCHING,
		Depth:         DEFAULT_DEPTH,
		MaxIterations: DEFAULT_MAX_ITERATIONS,
		Attempts:      DEFAULT_ATTEMPTS,
		Seed:          DEFAULT_SEED,
	}
}

func (o *BuildOptions) applyDefaults() {
	if o.Branching == 0 {
		o.Branching = DEFAULT_BRANCHING
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DEFAULT_MAX_ITERATIONS
	}
	if o.Attempts <= 0 {
		o.Attempts = DEFAULT_ATTEMPTS
	}
}

// VocabularyTree quantizes descriptors into visual words. It is built once
// and then only read, so concurrent Search calls are safe.
type VocabularyTree struct {
	branching int
	depth     int
	root      *Node
	numLeaves int
}

// NewVocabularyTree returns an empty tree with default parameters.
func NewVocabularyTree() *VocabularyTree {
	return &VocabularyTree{
		branching: DEFAULT_BRANCHING,
		depth:     DEFAULT_DEPTH,
	}
}

// Build clusters the descriptors of all images, replacing any previous
// tree. images[i] is tagged with image index i.
func (t *VocabularyTree) Build(images []feature.DescriptorSet, opts BuildOptions) error {
	opts.applyDefaults()
	if opts.Branching < 2 {
		return fmt.Errorf("%w: branching factor %d", pkgerrors.ErrInvalidInput, opts.Branching)
	}
	if opts.Depth < 0 {
		return fmt.Errorf("%w: depth %d", pkgerrors.ErrInvalidInput, opts.Depth)
	}
	if len(images) == 0 {
		return pkgerrors.ErrEmptyCatalog
	}

	dim := 0
	total := 0
	for _, set := range images {
		if dim == 0 {
			dim = set.Dim()
		}
		total += set.Rows()
	}
	if total == 0 {
		return pkgerrors.ErrNoDescriptors
	}

	rows := make([][]float32, 0, total)
	tags := make([]int, 0, total)
	for i, set := range images {
		if set.Rows() == 0 {
			continue
		}
		if err := set.Validate(dim); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		for _, row := range set {
			rows = append(rows, row)
			tags = append(tags, i)
		}
	}

	b := &treeBuilder{
		k:           opts.Branching,
		depth:       opts.Depth,
		maxIter:     opts.MaxIterations,
		attempts:    opts.Attempts,
		dim:         dim,
		totalImages: len(images),
		rng:         rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	root := &Node{Level: 0, LeafIndex: internalLeafIndex}
	b.build(root, rows, tags)

	t.branching = opts.Branching
	t.depth = opts.Depth
	t.root = root
	t.numLeaves = b.nextLeaf

	logger.Info("Vocabulary tree built",
		"images", len(images),
		"descriptors", total,
		"branching", opts.Branching,
		"depth", opts.Depth,
		"leaves", b.nextLeaf)
	return nil
}

// treeBuilder carries per-build state. Leaf numbering restarts with every
// build.
type treeBuilder struct {
	k           int
	depth       int
	maxIter     int
	attempts    int
	dim         int
	totalImages int
	nextLeaf    int
	rng         *rand.Rand
}

func (b *treeBuilder) build(node *Node, rows [][]float32, tags []int) {
	node.Centroid = meanRow(rows, b.dim)
	node.Weight = math.Log(float64(b.totalImages) / float64(countImageRuns(tags)))

	if len(rows) < b.k || node.Level >= b.depth {
		node.LeafIndex = b.nextLeaf
		b.nextLeaf++
		node.Postings = buildPostings(tags)
		return
	}

	labels := kmeans(rows, b.k, b.maxIter, b.attempts, b.rng)

	clusterRows := make([][][]float32, b.k)
	clusterTags := make([][]int, b.k)
	for i, c := range labels {
		clusterRows[c] = append(clusterRows[c], rows[i])
		clusterTags[c] = append(clusterTags[c], tags[i])
	}

	node.Children = make([]*Node, b.k)
	for c := 0; c < b.k; c++ {
		child := &Node{Level: node.Level + 1, LeafIndex: internalLeafIndex}
		node.Children[c] = child
		b.build(child, clusterRows[c], clusterTags[c])
	}
}

// Descend follows the nearest child at every level and returns the leaf.
func (t *VocabularyTree) Descend(query []float32) (*Node, error) {
	if t.root == nil {
		return nil, pkgerrors.ErrVocabularyNotBuilt
	}
	if len(query) != len(t.root.Centroid) {
		return nil, fmt.Errorf("%w: query has %d columns, tree has %d",
			pkgerrors.ErrInvalidDimension, len(query), len(t.root.Centroid))
	}

	node := t.root
	for !node.IsLeaf() {
		best := node.Children[0]
		bestDist := squaredL2(query, best.Centroid)
		for _, child := range node.Children[1:] {
			if d := squaredL2(query, child.Centroid); d < bestDist {
				best = child
				bestDist = d
			}
		}
		node = best
	}
	return node, nil
}

// Search maps a descriptor to its visual word.
func (t *VocabularyTree) Search(query []float32) (Word, error) {
	leaf, err := t.Descend(query)
	if err != nil {
		return Word{}, err
	}
	return Word{Index: leaf.LeafIndex, Weight: leaf.Weight}, nil
}

// IsEmpty reports whether the tree has not been built or loaded.
func (t *VocabularyTree) IsEmpty() bool {
	return t.root == nil
}

// Clear drops the tree. Parameters are kept.
func (t *VocabularyTree) Clear() {
	t.root = nil
	t.numLeaves = 0
}

func (t *VocabularyTree) Root() *Node { return t.root }
func (t *VocabularyTree) Branching() int { return t.branching }
func (t *VocabularyTree) Depth() int { return t.depth }
func (t *VocabularyTree) NumLeaves() int { return t.numLeaves }

// Dim returns the descriptor dimension, 0 when empty.
func (t *VocabularyTree) Dim() int {
	if t.root == nil {
		return 0
	}
	return len(t.root.Centroid)
}

// Leaves returns the leaves in depth-first pre-order, which is also leaf
// index order.
func (t *VocabularyTree) Leaves() []*Node {
	if t.root == nil {
		return nil
	}
	leaves := make([]*Node, 0, t.numLeaves)
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(t.root)
	return leaves
}

// Checksum hashes the tree structure, centroids and weights. Two trees with
// the same checksum quantize identically.
func (t *VocabularyTree) Checksum() uint64 {
	h := murmur3.New64()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	put(uint64(t.branching))
	put(uint64(t.depth))
	if t.root == nil {
		return h.Sum64()
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		put(uint64(n.Level))
		put(uint64(int64(n.LeafIndex)))
		put(math.Float64bits(n.Weight))
		for _, v := range n.Centroid {
			put(uint64(math.Float32bits(v)))
		}
		put(uint64(len(n.Children)))
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(t.root)
	return h.Sum64()
}
