package index

import (
	"fmt"
	"math"
	"sort"

	"imgsearch/internal/feature"
	pkgerrors "imgsearch/pkg/errors"
)

// Quantizer maps a descriptor to a visual word.
type Quantizer interface {
	Search(query []float32) (Word, error)
}

// WordWeight is one non-zero entry of a Histogram.
type WordWeight struct {
	Index  int
	Weight float64
}

// Histogram is a sparse TF-IDF vector over visual words, kept sorted by word
// index with a cached L2 magnitude.
type Histogram struct {
	words     []WordWeight
	magnitude float64
}

// NewHistogram computes the histogram of d against q.
func NewHistogram(d feature.DescriptorSet, q Quantizer) (*Histogram, error) {
	h := &Histogram{}
	if err := h.Compute(d, q); err != nil {
		return nil, err
	}
	return h, nil
}

// Compute replaces the contents with the weighted term frequencies of d.
// Every descriptor adds weight/N to its word, N being the descriptor count.
func (h *Histogram) Compute(d feature.DescriptorSet, q Quantizer) error {
	h.Clear()
	if d.Rows() == 0 {
		return pkgerrors.ErrNoDescriptors
	}

	n := float64(d.Rows())
	acc := make(map[int]float64)
	for i, row := range d {
		w, err := q.Search(row)
		if err != nil {
			return fmt.Errorf("quantize descriptor %d: %w", i, err)
		}
		acc[w.Index] += w.Weight / n
	}

	h.words = make([]WordWeight, 0, len(acc))
	for index, weight := range acc {
		h.words = append(h.words, WordWeight{Index: index, Weight: weight})
	}
	sort.Slice(h.words, func(i, j int) bool { return h.words[i].Index < h.words[j].Index })
	h.magnitude = h.norm()
	return nil
}

func (h *Histogram) norm() float64 {
	var sum float64
	for _, w := range h.words {
		sum += w.Weight * w.Weight
	}
	return math.Sqrt(sum)
}

// Compare returns the cosine similarity of two histograms. A histogram with
// zero magnitude is similar to nothing.
func (h *Histogram) Compare(other *Histogram) float64 {
	if h.magnitude == 0 || other.magnitude == 0 {
		return NoSimilarity
	}

	var dot float64
	i, j := 0, 0
	for i < len(h.words) && j < len(other.words) {
		a, b := h.words[i], other.words[j]
		switch {
		case a.Index < b.Index:
			i++
		case a.Index > b.Index:
			j++
		default:
			dot += a.Weight * b.Weight
			i++
			j++
		}
	}
	return dot / (h.magnitude * other.magnitude)
}

func (h *Histogram) Magnitude() float64 { return h.magnitude }

// Words returns the non-zero entries in ascending word order. The slice is
// shared and must not be modified.
func (h *Histogram) Words() []WordWeight { return h.words }

func (h *Histogram) Len() int { return len(h.words) }

func (h *Histogram) Clear() {
	h.words = nil
	h.magnitude = 0
}

// HistogramDocument is the serialized form of a Histogram.
type HistogramDocument struct {
	Magnitude float64        `yaml:"magnitude"`
	Words     []WordDocument `yaml:"wordhist"`
}

type WordDocument struct {
	Bin    int     `yaml:"bin"`
	Weight float64 `yaml:"freq"`
}

func (h *Histogram) Document() HistogramDocument {
	doc := HistogramDocument{
		Magnitude: h.magnitude,
		Words:     make([]WordDocument, len(h.words)),
	}
	for i, w := range h.words {
		doc.Words[i] = WordDocument{Bin: w.Index, Weight: w.Weight}
	}
	return doc
}

// HistogramFromDocument restores a histogram. Bins must be strictly
// ascending; the stored magnitude is kept as is.
func HistogramFromDocument(doc HistogramDocument) (*Histogram, error) {
	h := &Histogram{
		words:     make([]WordWeight, len(doc.Words)),
		magnitude: doc.Magnitude,
	}
	for i, w := range doc.Words {
		if i > 0 && w.Bin <= doc.Words[i-1].Bin {
			return nil, fmt.Errorf("%w: histogram bins not ascending at %d", pkgerrors.ErrArtifactMalformed, w.Bin)
		}
		if w.Bin < 0 {
			return nil, fmt.Errorf("%w: negative histogram bin %d", pkgerrors.ErrArtifactMalformed, w.Bin)
		}
		h.words[i] = WordWeight{Index: w.Bin, Weight: w.Weight}
	}
	return h, nil
}
