package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindUnwrap(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrEmptyCatalog, ErrInvalidInput},
		{ErrInvalidDimension, ErrInvalidInput},
		{ErrVocabularyNotBuilt, ErrPreconditionViolation},
		{ErrHashTableMismatch, ErrPreconditionViolation},
		{ErrInconsistentArtifacts, ErrPersistenceFailure},
		{ErrCatalogLocked, ErrResourceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("operation failed: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.err))
			assert.True(t, errors.Is(wrapped, tt.kind))
			assert.Equal(t, tt.kind, Kind(wrapped))
		})
	}
}

func TestKindUnknown(t *testing.T) {
	assert.Nil(t, Kind(errors.New("plain")))
	assert.Nil(t, Kind(nil))
}
