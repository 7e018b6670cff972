package index

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	pkgerrors "imgsearch/pkg/errors"
)

// TreeDocument is the serialized form of a VocabularyTree. Centroids are
// widened to float64 so they survive the text encoding bit-exact.
type TreeDocument struct {
	Branching int           `yaml:"clusters"`
	Depth     int           `yaml:"maxlevel"`
	Leaves    int           `yaml:"leaves"`
	Checksum  string        `yaml:"checksum"`
	Root      *NodeDocument `yaml:"root,omitempty"`
}

type NodeDocument struct {
	Level     int               `yaml:"level"`
	LeafIndex int               `yaml:"leafindex"`
	Weight    float64           `yaml:"nodeweight"`
	Centroid  []float64         `yaml:"descriptor,flow"`
	Postings  []PostingDocument `yaml:"postings,omitempty"`
	Children  []*NodeDocument   `yaml:"children,omitempty"`
}

type PostingDocument struct {
	Image     int `yaml:"image"`
	Frequency int `yaml:"freq"`
}

// Document converts the tree to its serialized form.
func (t *VocabularyTree) Document() *TreeDocument {
	doc := &TreeDocument{
		Branching: t.branching,
		Depth:     t.depth,
		Leaves:    t.numLeaves,
		Checksum:  FormatChecksum(t.Checksum()),
	}
	if t.root != nil {
		doc.Root = nodeDocument(t.root)
	}
	return doc
}

func nodeDocument(n *Node) *NodeDocument {
	doc := &NodeDocument{
		Level:     n.Level,
		LeafIndex: n.LeafIndex,
		Weight:    n.Weight,
		Centroid:  make([]float64, len(n.Centroid)),
	}
	for i, v := range n.Centroid {
		doc.Centroid[i] = float64(v)
	}
	for _, p := range n.Postings {
		doc.Postings = append(doc.Postings, PostingDocument{Image: p.Image, Frequency: p.Frequency})
	}
	for _, child := range n.Children {
		doc.Children = append(doc.Children, nodeDocument(child))
	}
	return doc
}

// FromDocument replaces the tree with the one described by doc. Leaf indices
// must be exactly 0..n-1 in pre-order and all centroids must share one
// dimension.
func (t *VocabularyTree) FromDocument(doc *TreeDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: nil vocabulary document", pkgerrors.ErrArtifactMalformed)
	}
	if doc.Root == nil {
		t.branching = doc.Branching
		t.depth = doc.Depth
		t.Clear()
		return nil
	}

	r := &treeReader{dim: len(doc.Root.Centroid)}
	root, err := r.node(doc.Root, 0)
	if err != nil {
		return err
	}
	if doc.Leaves != 0 && doc.Leaves != r.nextLeaf {
		return fmt.Errorf("%w: vocabulary declares %d leaves, found %d",
			pkgerrors.ErrArtifactMalformed, doc.Leaves, r.nextLeaf)
	}

	loaded := &VocabularyTree{
		branching: doc.Branching,
		depth:     doc.Depth,
		root:      root,
		numLeaves: r.nextLeaf,
	}
	if doc.Checksum != "" && doc.Checksum != FormatChecksum(loaded.Checksum()) {
		return fmt.Errorf("%w: vocabulary checksum %s does not match its content",
			pkgerrors.ErrArtifactMalformed, doc.Checksum)
	}
	*t = *loaded
	return nil
}

// FormatChecksum renders a tree checksum the way artifacts store it.
func FormatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

type treeReader struct {
	dim      int
	nextLeaf int
}

func (r *treeReader) node(doc *NodeDocument, level int) (*Node, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: missing vocabulary node at level %d", pkgerrors.ErrArtifactMalformed, level)
	}
	if doc.Level != level {
		return nil, fmt.Errorf("%w: node level %d found at depth %d", pkgerrors.ErrArtifactMalformed, doc.Level, level)
	}
	if len(doc.Centroid) != r.dim {
		return nil, fmt.Errorf("%w: centroid has %d columns, expected %d",
			pkgerrors.ErrArtifactMalformed, len(doc.Centroid), r.dim)
	}

	n := &Node{
		Level:     doc.Level,
		Weight:    doc.Weight,
		LeafIndex: internalLeafIndex,
		Centroid:  make([]float32, len(doc.Centroid)),
	}
	for i, v := range doc.Centroid {
		n.Centroid[i] = float32(v)
	}

	if len(doc.Children) == 0 {
		if doc.LeafIndex != r.nextLeaf {
			return nil, fmt.Errorf("%w: leaf index %d out of order, expected %d",
				pkgerrors.ErrArtifactMalformed, doc.LeafIndex, r.nextLeaf)
		}
		n.LeafIndex = doc.LeafIndex
		r.nextLeaf++
		for _, p := range doc.Postings {
			n.Postings = append(n.Postings, Posting{Image: p.Image, Frequency: p.Frequency})
		}
		return n, nil
	}

	n.Children = make([]*Node, len(doc.Children))
	for i, childDoc := range doc.Children {
		child, err := r.node(childDoc, level+1)
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	return n, nil
}

// Save writes the tree as YAML.
func (t *VocabularyTree) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(t.Document()); err != nil {
		return fmt.Errorf("%w: encode vocabulary: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	return enc.Close()
}

// Load replaces the tree with the YAML read from r.
func (t *VocabularyTree) Load(r io.Reader) error {
	var doc TreeDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode vocabulary: %v", pkgerrors.ErrArtifactMalformed, err)
	}
	return t.FromDocument(&doc)
}
