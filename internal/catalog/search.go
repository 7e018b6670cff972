package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"imgsearch/internal/feature"
	"imgsearch/internal/index"
	"imgsearch/internal/metrics"
	pkgerrors "imgsearch/pkg/errors"
	"imgsearch/pkg/logger"
)

// Match is one ranked catalog entry.
type Match struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// Rank scores every record against the query and returns all of them, best
// first. Equal scores keep insertion order.
func (c *Catalog) Rank(query feature.DescriptorSet) ([]Match, error) {
	start := time.Now()
	matches, err := c.rank(query)
	metrics.SearchesTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return matches, nil
}

func (c *Catalog) rank(query feature.DescriptorSet) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.records) == 0 {
		return nil, fmt.Errorf("search: %w", pkgerrors.ErrEmptyCatalog)
	}
	if c.tree.IsEmpty() {
		return nil, fmt.Errorf("search: %w", pkgerrors.ErrVocabularyNotBuilt)
	}
	if len(c.histograms) != len(c.records) {
		return nil, fmt.Errorf("search: %w: %d histograms for %d records",
			pkgerrors.ErrHashTableMismatch, len(c.histograms), len(c.records))
	}
	if err := query.Validate(c.tree.Dim()); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	q, err := index.NewHistogram(query, c.tree)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]Match, len(c.histograms))
	for i, h := range c.histograms {
		matches[i] = Match{Name: c.records[i].Name, Score: q.Compare(h), Position: i}
	}
	sortMatches(matches)
	return matches, nil
}

// sortMatches orders by descending score, then ascending position.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Position < matches[j].Position
	})
}

// Search returns the top matches of Rank.
func (c *Catalog) Search(query feature.DescriptorSet) ([]Match, error) {
	matches, err := c.Rank(query)
	if err != nil {
		return nil, err
	}
	return Top(matches, c.opts.TopMatches), nil
}

// Top truncates a ranking to at most n entries.
func Top(matches []Match, n int) []Match {
	if n >= 0 && len(matches) > n {
		return matches[:n]
	}
	return matches
}

// RankFile extracts the query descriptors from path and ranks the catalog.
// Extraction runs outside the catalog lock.
func (c *Catalog) RankFile(ctx context.Context, src feature.Source, path string) ([]Match, error) {
	d, err := src.Extract(ctx, path)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.Status(err)).Inc()
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	matches, err := c.Rank(d)
	if err != nil {
		return nil, err
	}
	logger.Debug("Query ranked", "path", path, "descriptors", d.Rows(), "best", matches[0].Name)
	return matches, nil
}

func (c *Catalog) SearchFile(ctx context.Context, src feature.Source, path string) ([]Match, error) {
	matches, err := c.RankFile(ctx, src, path)
	if err != nil {
		return nil, err
	}
	return Top(matches, c.opts.TopMatches), nil
}
