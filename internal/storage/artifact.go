package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	pkgerrors "imgsearch/pkg/errors"
)

// WriteFile writes an artifact through fn into a temporary file next to path
// and renames it into place, so readers never observe a partial artifact.
func WriteFile(path string, fn func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := fn(w); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: flush %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	return nil
}

// ReadFile opens path and hands it to fn. A missing file yields
// ErrArtifactMissing.
func ReadFile(path string, fn func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", pkgerrors.ErrArtifactMissing, path)
		}
		return fmt.Errorf("%w: open %s: %v", pkgerrors.ErrPersistenceFailure, path, err)
	}
	defer f.Close()
	return fn(bufio.NewReader(f))
}

// WriteYAML encodes v as a YAML artifact at path.
func WriteYAML(path string, v any) error {
	return WriteFile(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadYAML decodes the YAML artifact at path into v.
func ReadYAML(path string, v any) error {
	return ReadFile(path, func(r io.Reader) error {
		if err := yaml.NewDecoder(r).Decode(v); err != nil {
			return fmt.Errorf("%w: %s: %v", pkgerrors.ErrArtifactMalformed, path, err)
		}
		return nil
	})
}
