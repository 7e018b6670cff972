package storage

import (
	"fmt"
	"os"
	"path/filepath"

	pkgerrors "imgsearch/pkg/errors"
)

const (
	TempDirName       = "temp"
	DescriptorDirName = "descr"

	mainSuffix  = "_main.yaml"
	vocabSuffix = "_vocab.yaml"
	hashSuffix  = "_hash.yaml"
	descrSuffix = "_descr.db"
	lockSuffix  = ".lock"
)

// Layout names the files of one catalog under its root directory.
type Layout struct {
	Path string
	Name string
}

func NewLayout(path, name string) Layout {
	return Layout{Path: path, Name: name}
}

func (l Layout) MainFile() string { return filepath.Join(l.Path, l.Name+mainSuffix) }
func (l Layout) VocabFile() string { return filepath.Join(l.Path, l.Name+vocabSuffix) }
func (l Layout) HashFile() string { return filepath.Join(l.Path, l.Name+hashSuffix) }
func (l Layout) LockFile() string { return filepath.Join(l.Path, l.Name+lockSuffix) }

func (l Layout) TempDir() string { return filepath.Join(l.Path, TempDirName) }
func (l Layout) DescriptorDir() string { return filepath.Join(l.Path, DescriptorDirName) }

// DescriptorDB is the SQLite file holding the raw descriptor sets.
func (l Layout) DescriptorDB() string {
	return filepath.Join(l.DescriptorDir(), l.Name+descrSuffix)
}

// EnsureDirs creates the root, temp and descriptor directories.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.Path, l.TempDir(), l.DescriptorDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create %s: %v", pkgerrors.ErrResourceFailure, dir, err)
		}
	}
	return nil
}

// Exists reports whether the main artifact is present.
func (l Layout) Exists() bool {
	_, err := os.Stat(l.MainFile())
	return err == nil
}
