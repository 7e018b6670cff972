package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"imgsearch/internal/index"
	"imgsearch/internal/metrics"
	"imgsearch/internal/storage"
	pkgerrors "imgsearch/pkg/errors"
	"imgsearch/pkg/logger"
)

// mainDocument is the record-name list artifact.
type mainDocument struct {
	Name        string   `yaml:"name"`
	Count       int      `yaml:"count"`
	Fingerprint string   `yaml:"fingerprint"`
	Records     []string `yaml:"imagelist"`
}

// hashDocument is the histogram table artifact. It names the record list and
// vocabulary it was computed against.
type hashDocument struct {
	Count             int                       `yaml:"count"`
	RecordFingerprint string                    `yaml:"records"`
	TreeChecksum      string                    `yaml:"vocabulary"`
	Histograms        []index.HistogramDocument `yaml:"histograms"`
}

func (c *Catalog) requireCreated() error {
	if !c.created {
		return pkgerrors.ErrCatalogNotCreated
	}
	return nil
}

func (c *Catalog) acquire() (*storage.Lock, error) {
	return storage.AcquireLock(c.layout.LockFile(), c.opts.LockTimeout)
}

// withFileLock runs fn under the catalog write lock and the cross-process
// file lock.
func (c *Catalog) withFileLock(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireCreated(); err != nil {
		return err
	}
	lock, err := c.acquire()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release catalog lock", "path", c.layout.LockFile(), "error", err)
		}
	}()
	return fn()
}

// SaveImageDB writes the record-name list and stores the descriptors of every
// record not saved yet.
func (c *Catalog) SaveImageDB(ctx context.Context) error {
	return c.withFileLock(func() error { return c.saveImageDB(ctx) })
}

func (c *Catalog) SaveVocabularyTree() error {
	return c.withFileLock(c.saveVocabularyTree)
}

func (c *Catalog) SaveHashTable() error {
	return c.withFileLock(c.saveHashTable)
}

// Save writes all three artifacts.
func (c *Catalog) Save(ctx context.Context) error {
	return c.withFileLock(func() error {
		start := time.Now()
		if err := c.saveImageDB(ctx); err != nil {
			return err
		}
		if err := c.saveVocabularyTree(); err != nil {
			return err
		}
		if err := c.saveHashTable(); err != nil {
			return err
		}
		c.state = StatePersisted
		logger.Info("Catalog saved",
			"path", c.layout.Path,
			"name", c.layout.Name,
			"records", len(c.records),
			"elapsed", time.Since(start))
		return nil
	})
}

func (c *Catalog) saveImageDB(ctx context.Context) error {
	store, err := storage.OpenDescriptorStore(c.layout.DescriptorDB())
	if err != nil {
		return err
	}
	defer store.Close()

	var pending []storage.DescriptorRecord
	for i, r := range c.records {
		if r.Saved || r.Descriptors == nil {
			continue
		}
		pending = append(pending, storage.DescriptorRecord{Position: i, Name: r.Name, Descriptors: r.Descriptors})
	}
	if err := store.Sync(ctx, len(c.records), pending); err != nil {
		return fmt.Errorf("save descriptors: %w", err)
	}

	names := c.names()
	doc := mainDocument{
		Name:        c.layout.Name,
		Count:       len(names),
		Fingerprint: storage.Fingerprint(names),
		Records:     names,
	}
	if err := storage.WriteYAML(c.layout.MainFile(), doc); err != nil {
		return err
	}

	for _, p := range pending {
		c.records[p.Position].Saved = true
	}
	logger.Debug("Image records saved", "file", c.layout.MainFile(), "records", len(names), "payloads", len(pending))
	return nil
}

func (c *Catalog) saveVocabularyTree() error {
	if c.tree.IsEmpty() {
		return fmt.Errorf("save vocabulary: %w", pkgerrors.ErrVocabularyNotBuilt)
	}
	if err := storage.WriteFile(c.layout.VocabFile(), c.tree.Save); err != nil {
		return err
	}
	logger.Debug("Vocabulary tree saved", "file", c.layout.VocabFile(), "leaves", c.tree.NumLeaves())
	return nil
}

func (c *Catalog) saveHashTable() error {
	if c.tree.IsEmpty() {
		return fmt.Errorf("save hash table: %w", pkgerrors.ErrVocabularyNotBuilt)
	}
	if len(c.histograms) != len(c.records) {
		return fmt.Errorf("save hash table: %w: %d histograms for %d records",
			pkgerrors.ErrHashTableMismatch, len(c.histograms), len(c.records))
	}

	doc := hashDocument{
		Count:             len(c.histograms),
		RecordFingerprint: storage.Fingerprint(c.names()),
		TreeChecksum:      index.FormatChecksum(c.tree.Checksum()),
		Histograms:        make([]index.HistogramDocument, len(c.histograms)),
	}
	for i, h := range c.histograms {
		doc.Histograms[i] = h.Document()
	}
	if err := storage.WriteYAML(c.layout.HashFile(), doc); err != nil {
		return err
	}
	logger.Debug("Hash table saved", "file", c.layout.HashFile(), "histograms", len(c.histograms))
	return nil
}

// Load replaces the catalog with the artifacts stored under path/name. With
// full unset only record names are read; the catalog can then search but not
// rebuild its vocabulary or hash table. Any failure leaves the catalog empty.
func (c *Catalog) Load(ctx context.Context, path, name string, full bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clear()
	c.layout = storage.NewLayout(path, name)
	c.created = true

	err := func() error {
		lock, err := c.acquire()
		if err != nil {
			return err
		}
		defer lock.Release()

		if err := c.loadImageDB(ctx, full); err != nil {
			return err
		}
		if err := c.loadVocabularyTree(); err != nil {
			return err
		}
		return c.loadHashTable()
	}()
	if err != nil {
		c.clear()
		return fmt.Errorf("load catalog %s/%s: %w", path, name, err)
	}

	c.state = StatePersisted
	logger.Info("Catalog loaded",
		"path", path,
		"name", name,
		"records", len(c.records),
		"leaves", c.tree.NumLeaves(),
		"full", full)
	return nil
}

// LoadImageDB replaces the records with the stored list. Histograms are
// dropped since they no longer line up.
func (c *Catalog) LoadImageDB(ctx context.Context, full bool) error {
	return c.withFileLock(func() error { return c.loadImageDB(ctx, full) })
}

// LoadVocabularyTree replaces the tree. Histograms are dropped.
func (c *Catalog) LoadVocabularyTree() error {
	return c.withFileLock(c.loadVocabularyTree)
}

// LoadHashTable reads histograms computed against the current records and
// tree.
func (c *Catalog) LoadHashTable() error {
	return c.withFileLock(c.loadHashTable)
}

func (c *Catalog) loadImageDB(ctx context.Context, full bool) error {
	var doc mainDocument
	if err := storage.ReadYAML(c.layout.MainFile(), &doc); err != nil {
		return err
	}
	if doc.Count != len(doc.Records) {
		return fmt.Errorf("%w: %s declares %d records, lists %d",
			pkgerrors.ErrArtifactMalformed, c.layout.MainFile(), doc.Count, len(doc.Records))
	}
	if doc.Fingerprint != "" && doc.Fingerprint != storage.Fingerprint(doc.Records) {
		return fmt.Errorf("%w: record list fingerprint mismatch", pkgerrors.ErrInconsistentArtifacts)
	}

	records := make([]Record, len(doc.Records))
	for i, name := range doc.Records {
		records[i] = Record{Name: name, Saved: true}
	}
	if full && len(records) > 0 {
		if err := c.loadPayloads(ctx, records); err != nil {
			return err
		}
	}

	c.records = records
	c.histograms = nil
	metrics.CatalogImages.Set(float64(len(records)))
	if c.tree.IsEmpty() {
		c.state = StatePopulated
	} else {
		c.state = StateIndexed
	}
	c.version++
	logger.Debug("Image records loaded", "file", c.layout.MainFile(), "records", len(records), "full", full)
	return nil
}

func (c *Catalog) loadPayloads(ctx context.Context, records []Record) error {
	dbPath := c.layout.DescriptorDB()
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", pkgerrors.ErrArtifactMissing, dbPath)
		}
		return fmt.Errorf("%w: %v", pkgerrors.ErrPersistenceFailure, err)
	}

	store, err := storage.OpenDescriptorStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	stored, err := store.All(ctx)
	if err != nil {
		return err
	}
	byPosition := make(map[int]storage.DescriptorRecord, len(stored))
	for _, r := range stored {
		byPosition[r.Position] = r
	}

	for i := range records {
		r, ok := byPosition[i]
		if !ok {
			return fmt.Errorf("%w: descriptors of record %d (%s)", pkgerrors.ErrArtifactMissing, i, records[i].Name)
		}
		if r.Name != records[i].Name {
			return fmt.Errorf("%w: record %d is %s in the list but %s in the descriptor store",
				pkgerrors.ErrInconsistentArtifacts, i, records[i].Name, r.Name)
		}
		records[i].Descriptors = r.Descriptors
	}
	return nil
}

func (c *Catalog) loadVocabularyTree() error {
	tree := index.NewVocabularyTree()
	if err := storage.ReadFile(c.layout.VocabFile(), tree.Load); err != nil {
		return err
	}
	if tree.IsEmpty() {
		return fmt.Errorf("%w: %s holds no tree", pkgerrors.ErrArtifactMalformed, c.layout.VocabFile())
	}

	c.tree = tree
	c.histograms = nil
	c.state = StateIndexed
	c.version++
	metrics.VocabularyLeaves.Set(float64(tree.NumLeaves()))
	logger.Debug("Vocabulary tree loaded", "file", c.layout.VocabFile(), "leaves", tree.NumLeaves())
	return nil
}

func (c *Catalog) loadHashTable() error {
	if c.tree.IsEmpty() {
		return fmt.Errorf("load hash table: %w", pkgerrors.ErrVocabularyNotBuilt)
	}

	var doc hashDocument
	if err := storage.ReadYAML(c.layout.HashFile(), &doc); err != nil {
		return err
	}
	if doc.Count != len(doc.Histograms) {
		return fmt.Errorf("%w: %s declares %d histograms, holds %d",
			pkgerrors.ErrArtifactMalformed, c.layout.HashFile(), doc.Count, len(doc.Histograms))
	}
	if doc.Count != len(c.records) {
		return fmt.Errorf("%w: %d histograms for %d records",
			pkgerrors.ErrInconsistentArtifacts, doc.Count, len(c.records))
	}
	if doc.RecordFingerprint != storage.Fingerprint(c.names()) {
		return fmt.Errorf("%w: hash table was built for a different record list", pkgerrors.ErrInconsistentArtifacts)
	}
	if doc.TreeChecksum != index.FormatChecksum(c.tree.Checksum()) {
		return fmt.Errorf("%w: hash table was built against a different vocabulary", pkgerrors.ErrInconsistentArtifacts)
	}

	histograms := make([]*index.Histogram, len(doc.Histograms))
	for i, hd := range doc.Histograms {
		h, err := index.HistogramFromDocument(hd)
		if err != nil {
			return fmt.Errorf("histogram %d: %w", i, err)
		}
		if words := h.Words(); len(words) > 0 && words[len(words)-1].Index >= c.tree.NumLeaves() {
			return fmt.Errorf("%w: histogram %d references word %d of %d",
				pkgerrors.ErrArtifactMalformed, i, words[len(words)-1].Index, c.tree.NumLeaves())
		}
		histograms[i] = h
	}

	c.histograms = histograms
	c.state = StateHashed
	c.version++
	logger.Debug("Hash table loaded", "file", c.layout.HashFile(), "histograms", len(histograms))
	return nil
}
