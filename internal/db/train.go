package db

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"imgsearch/internal/feature"
	"imgsearch/pkg/logger"
)

// DefaultListFile is the image list read from a training directory.
const DefaultListFile = "imagelist.txt"

type TrainOptions struct {
	ImageDir  string
	ListFile  string
	Branching int
	Depth     int
}

// Train builds a catalog from scratch out of the images listed in
// ImageDir/ListFile and persists it. Record i is named feature.RecordName(i).
func (db *DB) Train(ctx context.Context, opts TrainOptions) error {
	if opts.ListFile == "" {
		opts.ListFile = DefaultListFile
	}
	if opts.Branching <= 0 {
		opts.Branching = db.conf.Vocabulary.Branching
	}
	if opts.Depth <= 0 {
		opts.Depth = db.conf.Vocabulary.Depth
	}

	files, err := feature.ParseListFile(filepath.Join(opts.ImageDir, opts.ListFile))
	if err != nil {
		return err
	}
	paths := make([]string, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(opts.ImageDir, f)
		names[i] = feature.RecordName(i)
	}

	start := time.Now()
	c := db.Catalog
	defer db.cache.Purge()

	if err := c.Create(db.conf.DBPath, db.conf.DBName); err != nil {
		return err
	}
	if err := c.AddFileList(ctx, db.Source, paths, names); err != nil {
		return fmt.Errorf("add images: %w", err)
	}
	if err := c.SaveImageDB(ctx); err != nil {
		return err
	}
	logger.Info("Building vocabulary tree", "images", len(paths), "branching", opts.Branching, "depth", opts.Depth)
	if err := c.BuildVocabularyTree(opts.Branching, opts.Depth); err != nil {
		return err
	}
	if err := c.SaveVocabularyTree(); err != nil {
		return err
	}
	if err := c.BuildHashTable(); err != nil {
		return err
	}
	if err := c.SaveHashTable(); err != nil {
		return err
	}

	logger.Info("Training finished",
		"images", len(paths),
		"leaves", c.Stats().Leaves,
		"elapsed", time.Since(start))
	return nil
}
