package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"imgsearch/internal/feature"
	"imgsearch/internal/index"
	"imgsearch/internal/metrics"
	"imgsearch/internal/storage"
	pkgerrors "imgsearch/pkg/errors"
	"imgsearch/pkg/logger"
)

// DefaultTopMatches is the number of names Search returns.
const DefaultTopMatches = 5

// State tracks how far a catalog has progressed from empty to persisted.
type State int

const (
	StateEmpty State = iota
	StateCreated
	StatePopulated
	StateIndexed
	StateHashed
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCreated:
		return "created"
	case StatePopulated:
		return "populated"
	case StateIndexed:
		return "indexed"
	case StateHashed:
		return "hashed"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Record is one stored image.
type Record struct {
	Name string
	// Descriptors is nil for records loaded without their payload.
	Descriptors feature.DescriptorSet
	// Saved is set once the payload is in the descriptor store.
	Saved bool
}

type Options struct {
	// Build holds the k-means parameters; Branching and Depth are
	// overridden by BuildVocabularyTree.
	Build       index.BuildOptions
	TopMatches  int
	LockTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Build:       index.DefaultBuildOptions(),
		TopMatches:  DefaultTopMatches,
		LockTimeout: 5 * time.Second,
	}
}

// Catalog holds image records, their histograms and the shared vocabulary
// tree. records[i] and histograms[i] describe the same image whenever the
// hash table is complete. Mutations take the write lock; searches share the
// read lock.
type Catalog struct {
	mu         sync.RWMutex
	opts       Options
	layout     storage.Layout
	created    bool
	records    []Record
	histograms []*index.Histogram
	tree       *index.VocabularyTree
	state      State
	version    uint64
}

func New(opts Options) *Catalog {
	if opts.TopMatches <= 0 {
		opts.TopMatches = DefaultTopMatches
	}
	return &Catalog{
		opts: opts,
		tree: index.NewVocabularyTree(),
	}
}

// Create resets the catalog and prepares path, path/temp and path/descr.
func (c *Catalog) Create(path, name string) error {
	layout := storage.NewLayout(path, name)
	if err := layout.EnsureDirs(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
	c.layout = layout
	c.created = true
	c.state = StateCreated
	logger.Info("Catalog created", "path", path, "name", name)
	return nil
}

// Clear drops records, histograms and the tree.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}

func (c *Catalog) clear() {
	c.layout = storage.Layout{}
	c.created = false
	c.records = nil
	c.histograms = nil
	c.tree.Clear()
	c.state = StateEmpty
	c.version++
	metrics.CatalogImages.Set(0)
	metrics.VocabularyLeaves.Set(0)
}

// AddImage appends a record. With computeHash the vocabulary tree must exist
// and the hash table must be complete, and the new record's histogram is
// appended too.
func (c *Catalog) AddImage(d feature.DescriptorSet, name string, computeHash bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := d.Validate(c.dim()); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	var hist *index.Histogram
	if computeHash {
		if c.tree.IsEmpty() {
			return fmt.Errorf("add %s: %w", name, pkgerrors.ErrVocabularyNotBuilt)
		}
		if len(c.histograms) != len(c.records) {
			return fmt.Errorf("add %s: %w: %d histograms for %d records",
				name, pkgerrors.ErrHashTableMismatch, len(c.histograms), len(c.records))
		}
		var err error
		if hist, err = index.NewHistogram(d, c.tree); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}

	c.records = append(c.records, Record{Name: name, Descriptors: d})
	switch {
	case hist != nil:
		c.histograms = append(c.histograms, hist)
		c.state = StateHashed
	case !c.tree.IsEmpty():
		c.state = StateIndexed
	default:
		c.state = StatePopulated
	}
	c.version++
	metrics.CatalogImages.Set(float64(len(c.records)))
	logger.Debug("Image added", "name", name, "descriptors", d.Rows(), "hashed", hist != nil)
	return nil
}

// dim is the descriptor dimension new records must match, 0 if unconstrained.
func (c *Catalog) dim() int {
	if !c.tree.IsEmpty() {
		return c.tree.Dim()
	}
	for _, r := range c.records {
		if r.Descriptors.Rows() > 0 {
			return r.Descriptors.Dim()
		}
	}
	return 0
}

// AddImageFile extracts descriptors from path through src and adds them.
func (c *Catalog) AddImageFile(ctx context.Context, src feature.Source, path, name string, computeHash bool) error {
	d, err := src.Extract(ctx, path)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return c.AddImage(d, name, computeHash)
}

// AddFileList adds paths[i] as names[i] in order and stops at the first
// failure. Records added before the failure stay.
func (c *Catalog) AddFileList(ctx context.Context, src feature.Source, paths, names []string) error {
	if len(paths) != len(names) {
		return fmt.Errorf("%w: %d paths, %d names", pkgerrors.ErrMisMatchNames, len(paths), len(names))
	}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.AddImageFile(ctx, src, path, names[i], false); err != nil {
			return err
		}
	}
	logger.Info("Image list added", "count", len(paths))
	return nil
}

// payloads returns every record's descriptors, or ErrDescriptorsNotLoaded
// if any record was loaded without them.
func (c *Catalog) payloads() ([]feature.DescriptorSet, error) {
	sets := make([]feature.DescriptorSet, len(c.records))
	for i, r := range c.records {
		if r.Descriptors == nil {
			return nil, fmt.Errorf("%w: record %d (%s)", pkgerrors.ErrDescriptorsNotLoaded, i, r.Name)
		}
		sets[i] = r.Descriptors
	}
	return sets, nil
}

// BuildVocabularyTree clusters every record's descriptors into a k-way tree
// of the given depth. Existing histograms are discarded. The call blocks for
// the whole build.
func (c *Catalog) BuildVocabularyTree(k, depth int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return fmt.Errorf("build vocabulary: %w", pkgerrors.ErrEmptyCatalog)
	}
	sets, err := c.payloads()
	if err != nil {
		return fmt.Errorf("build vocabulary: %w", err)
	}

	opts := c.opts.Build
	opts.Branching = k
	opts.Depth = depth

	start := time.Now()
	if err := c.tree.Build(sets, opts); err != nil {
		return fmt.Errorf("build vocabulary: %w", err)
	}
	metrics.BuildDuration.WithLabelValues("vocabulary").Observe(time.Since(start).Seconds())
	metrics.VocabularyLeaves.Set(float64(c.tree.NumLeaves()))

	c.histograms = nil
	c.state = StateIndexed
	c.version++
	return nil
}

// BuildHashTable recomputes one histogram per record, in record order.
func (c *Catalog) BuildHashTable() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tree.IsEmpty() {
		return fmt.Errorf("build hash table: %w", pkgerrors.ErrVocabularyNotBuilt)
	}
	sets, err := c.payloads()
	if err != nil {
		return fmt.Errorf("build hash table: %w", err)
	}

	start := time.Now()
	histograms := make([]*index.Histogram, len(sets))
	for i, d := range sets {
		if histograms[i], err = index.NewHistogram(d, c.tree); err != nil {
			return fmt.Errorf("build hash table: record %d (%s): %w", i, c.records[i].Name, err)
		}
	}
	metrics.BuildDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())

	c.histograms = histograms
	c.state = StateHashed
	c.version++
	logger.Info("Hash table built", "records", len(histograms), "elapsed", time.Since(start))
	return nil
}

// Stats is a point-in-time summary of the catalog.
type Stats struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Records    int    `json:"records"`
	Histograms int    `json:"histograms"`
	Leaves     int    `json:"leaves"`
	Version    uint64 `json:"version"`
}

func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Path:       c.layout.Path,
		Name:       c.layout.Name,
		State:      c.state.String(),
		Records:    len(c.records),
		Histograms: len(c.histograms),
		Leaves:     c.tree.NumLeaves(),
		Version:    c.version,
	}
}

func (c *Catalog) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Version changes on every mutation.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Names returns the record names in insertion order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names()
}

func (c *Catalog) names() []string {
	names := make([]string, len(c.records))
	for i, r := range c.records {
		names[i] = r.Name
	}
	return names
}

// Dim returns the descriptor dimension queries must have, 0 if unknown.
func (c *Catalog) Dim() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dim()
}
