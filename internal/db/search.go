package db

import (
	"context"
	"os"

	"imgsearch/internal/cache"
	"imgsearch/internal/catalog"
	"imgsearch/internal/metrics"
)

// Search ranks the whole catalog against the descriptors at path. Extraction
// is bounded by the configured query timeout. Results are cached until the
// catalog or the query file changes.
func (db *DB) Search(ctx context.Context, path string) ([]catalog.Match, error) {
	key, cacheable := db.queryKey(path)
	if cacheable {
		if matches, ok := db.cache.Get(key); ok {
			metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
			return append([]catalog.Match(nil), matches...), nil
		}
		metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, db.conf.QueryTimeout())
	defer cancel()

	matches, err := db.Catalog.RankFile(ctx, db.Source, path)
	if err != nil {
		return nil, err
	}
	if cacheable {
		db.cache.Set(key, append([]catalog.Match(nil), matches...))
	}
	return matches, nil
}

// queryKey is computed before the search runs, so a result is never cached
// under a newer catalog version than the one it was ranked against.
func (db *DB) queryKey(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return cache.QueryKey(path, info.ModTime(), info.Size(), db.Catalog.Version()), true
}

// AddImage extracts the descriptors at path and adds them under name with
// its histogram, so the image is searchable immediately.
func (db *DB) AddImage(ctx context.Context, path, name string) error {
	ctx, cancel := context.WithTimeout(ctx, db.conf.QueryTimeout())
	defer cancel()
	return db.Catalog.AddImageFile(ctx, db.Source, path, name, true)
}
