package errors

import "errors"

// Error kinds. Every concrete error below unwraps to exactly one of these.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrResourceFailure       = errors.New("resource failure")
)

var (
	// Input errors
	ErrInvalidDimension = newKindError(ErrInvalidInput, "invalid descriptor dimension")
	ErrNoDescriptors    = newKindError(ErrInvalidInput, "image has no descriptors")
	ErrEmptyCatalog     = newKindError(ErrInvalidInput, "catalog is empty")
	ErrInvalidImage     = newKindError(ErrInvalidInput, "invalid or undecodable image")
	ErrInvalidListFile  = newKindError(ErrInvalidInput, "malformed image list file")
	ErrMisMatchNames    = newKindError(ErrInvalidInput, "input paths and names length mismatch")

	// Precondition errors
	ErrCatalogNotCreated    = newKindError(ErrPreconditionViolation, "catalog not created or loaded")
	ErrVocabularyNotBuilt   = newKindError(ErrPreconditionViolation, "vocabulary tree not built")
	ErrHashTableMismatch    = newKindError(ErrPreconditionViolation, "hash table and record count mismatch")
	ErrDescriptorsNotLoaded = newKindError(ErrPreconditionViolation, "record descriptors not loaded")

	// Persistence errors
	ErrArtifactMissing       = newKindError(ErrPersistenceFailure, "catalog artifact missing")
	ErrArtifactMalformed     = newKindError(ErrPersistenceFailure, "catalog artifact malformed")
	ErrInconsistentArtifacts = newKindError(ErrPersistenceFailure, "catalog artifacts inconsistent")

	// Resource errors
	ErrCatalogLocked = newKindError(ErrResourceFailure, "catalog is locked by another process")
)

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Kind reports which of the four error kinds err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrPreconditionViolation, ErrPersistenceFailure, ErrResourceFailure} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
