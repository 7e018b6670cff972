package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imgsearch/internal/cache"
	"imgsearch/internal/catalog"
	"imgsearch/internal/config"
	"imgsearch/internal/feature"
	"imgsearch/internal/index"
	pkgerrors "imgsearch/pkg/errors"
	"imgsearch/pkg/logger"
)

// DB ties a catalog to its configuration, feature source and query cache.
// It is what the transports serve.
type DB struct {
	conf    *config.Config
	Catalog *catalog.Catalog
	Source  feature.Source
	cache   *cache.LRUCache[[]catalog.Match]
}

// New prepares a DB reading descriptors from files. Call Open before serving.
func New(conf *config.Config) (*DB, error) {
	if conf == nil {
		return nil, fmt.Errorf("%w: nil config", pkgerrors.ErrInvalidInput)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err)
	}
	return &DB{
		conf:    conf,
		Catalog: catalog.New(CatalogOptions(conf)),
		Source:  feature.NewFileSource(conf.DescriptorDim),
		cache:   cache.NewLRUCache[[]catalog.Match](conf.Search.CacheSize),
	}, nil
}

// CatalogOptions derives catalog options from the configuration.
func CatalogOptions(conf *config.Config) catalog.Options {
	opts := catalog.DefaultOptions()
	opts.Build = index.BuildOptions{
		Branching:     conf.Vocabulary.Branching,
		Depth:         conf.Vocabulary.Depth,
		MaxIterations: conf.Vocabulary.MaxIterations,
		Attempts:      conf.Vocabulary.Attempts,
		Seed:          conf.Vocabulary.Seed,
	}
	opts.TopMatches = conf.Search.TopMatches
	return opts
}

// Open loads the configured catalog without descriptor payloads. When that
// fails a fresh empty catalog is created in its place.
func (db *DB) Open(ctx context.Context) error {
	err := db.Catalog.Load(ctx, db.conf.DBPath, db.conf.DBName, false)
	if err == nil {
		return nil
	}
	if errors.Is(err, pkgerrors.ErrCatalogLocked) {
		return err
	}

	logger.Warn("Failed to load catalog, creating an empty one",
		"path", db.conf.DBPath,
		"name", db.conf.DBName,
		"error", err)
	if err := db.Catalog.Create(db.conf.DBPath, db.conf.DBName); err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	db.cache.Purge()
}

func (db *DB) Config() *config.Config { return db.conf }

func (db *DB) Stats() catalog.Stats {
	return db.Catalog.Stats()
}

// Save persists every catalog artifact.
func (db *DB) Save(ctx context.Context) error {
	start := time.Now()
	if err := db.Catalog.Save(ctx); err != nil {
		return err
	}
	logger.Info("Catalog persisted", "elapsed", time.Since(start))
	return nil
}
