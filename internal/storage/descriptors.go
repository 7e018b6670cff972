package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"imgsearch/internal/feature"
	pkgerrors "imgsearch/pkg/errors"
)

// DescriptorRecord is one stored descriptor set, keyed by catalog position.
type DescriptorRecord struct {
	Position    int
	Name        string
	Descriptors feature.DescriptorSet
}

// DescriptorStore keeps raw descriptor sets in SQLite so a catalog can be
// reloaded with everything needed to rebuild its vocabulary.
type DescriptorStore struct {
	db   *sql.DB
	path string
}

func OpenDescriptorStore(path string) (*DescriptorStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open descriptor store: %v", pkgerrors.ErrPersistenceFailure, err)
	}

	s := &DescriptorStore{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DescriptorStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%w: pragma: %v", pkgerrors.ErrPersistenceFailure, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS descriptors (
			position INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			data BLOB NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: schema: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	return nil
}

// Sync writes records (insert or replace by position) and drops every row at
// or beyond count, in one transaction. Rows of records not passed in are kept.
func (s *DescriptorStore) Sync(ctx context.Context, count int, records []DescriptorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM descriptors WHERE position >= ?", count); err != nil {
		return fmt.Errorf("%w: trim descriptors: %v", pkgerrors.ErrPersistenceFailure, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO descriptors (position, name, data) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	defer stmt.Close()

	for _, r := range records {
		data, err := feature.EncodeDescriptors(r.Descriptors)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Position, r.Name, data); err != nil {
			return fmt.Errorf("%w: insert %s: %v", pkgerrors.ErrPersistenceFailure, r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	return nil
}

// Get returns the descriptors stored at position.
func (s *DescriptorStore) Get(ctx context.Context, position int) (DescriptorRecord, bool, error) {
	var (
		rec  = DescriptorRecord{Position: position}
		data []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT name, data FROM descriptors WHERE position = ?", position).Scan(&rec.Name, &data)
	if err == sql.ErrNoRows {
		return DescriptorRecord{}, false, nil
	}
	if err != nil {
		return DescriptorRecord{}, false, fmt.Errorf("%w: query descriptors: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	if rec.Descriptors, err = feature.DecodeDescriptors(data); err != nil {
		return DescriptorRecord{}, false, fmt.Errorf("%w: position %d: %v", pkgerrors.ErrArtifactMalformed, position, err)
	}
	return rec, true, nil
}

// All returns every record in position order.
func (s *DescriptorStore) All(ctx context.Context) ([]DescriptorRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT position, name, data FROM descriptors ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("%w: query descriptors: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var records []DescriptorRecord
	for rows.Next() {
		var (
			rec  DescriptorRecord
			data []byte
		)
		if err := rows.Scan(&rec.Position, &rec.Name, &data); err != nil {
			return nil, fmt.Errorf("%w: scan descriptors: %v", pkgerrors.ErrPersistenceFailure, err)
		}
		if rec.Descriptors, err = feature.DecodeDescriptors(data); err != nil {
			return nil, fmt.Errorf("%w: position %d: %v", pkgerrors.ErrArtifactMalformed, rec.Position, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate descriptors: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	return records, nil
}

func (s *DescriptorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM descriptors").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count descriptors: %v", pkgerrors.ErrPersistenceFailure, err)
	}
	return n, nil
}

func (s *DescriptorStore) Path() string { return s.path }

func (s *DescriptorStore) Close() error {
	return s.db.Close()
}
