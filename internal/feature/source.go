package feature

import (
	"context"
	"errors"
	"fmt"
	"os"

	pkgerrors "imgsearch/pkg/errors"
)

// Source turns an image reference into its descriptor set. Implementations
// report undecodable input with pkgerrors.ErrInvalidImage and images without
// keypoints with pkgerrors.ErrNoDescriptors.
type Source interface {
	Extract(ctx context.Context, path string) (DescriptorSet, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, path string) (DescriptorSet, error)

func (f SourceFunc) Extract(ctx context.Context, path string) (DescriptorSet, error) {
	return f(ctx, path)
}

// FileSource reads descriptors precomputed by an external extractor and
// stored with WriteDescriptorFile.
type FileSource struct {
	Dim int
}

// NewFileSource returns a FileSource that rejects sets whose dimension is not dim.
func NewFileSource(dim int) *FileSource {
	return &FileSource{Dim: dim}
}

func (s *FileSource) Extract(ctx context.Context, path string) (DescriptorSet, error) {
	type result struct {
		set DescriptorSet
		err error
	}
	done := make(chan result, 1)
	go func() {
		set, err := ReadDescriptorFile(path)
		done <- result{set, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("extract %s: %w", path, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if err := r.set.Validate(s.Dim); err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		return r.set, nil
	}
}

// ReadDescriptorFile loads a descriptor file.
func ReadDescriptorFile(path string) (DescriptorSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", pkgerrors.ErrInvalidImage, path)
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidImage, err)
	}
	set, err := DecodeDescriptors(b)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return set, nil
}

// WriteDescriptorFile stores a descriptor set for later extraction by FileSource.
func WriteDescriptorFile(path string, d DescriptorSet) error {
	b, err := EncodeDescriptors(d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", pkgerrors.ErrResourceFailure, path, err)
	}
	return nil
}
