package types

import (
	"context"

	"github.com/xhad/foiabias/internal/models"
)

// Core interfaces

// Source streams normalized document records from one upstream shape. Fetch
// is lazy and restartable per call: emit is invoked once per record, and a
// non-nil error from emit stops the stream.
type Source interface {
	Kind() models.SourceKind
	Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error
}

// FileResolver materializes a file descriptor to a local path, downloading
// at most once per unique file identity.
type FileResolver interface {
	Resolve(ctx context.Context, requestID string, fd *models.FileDescriptor) (string, error)
}

// Extractor pulls text out of a downloaded file.
type Extractor interface {
	Extract(ctx context.Context, path string, minChars int) (string, error)
}

// Classifier produces a structured partisan label for a document's text.
type Classifier interface {
	Classify(ctx context.Context, docID, text string) (models.StructuredLabel, error)
}

// Prefilter decides whether the remote classifier is worth invoking.
type Prefilter interface {
	ShouldClassify(ctx context.Context, text string) bool
}

// LabelStore persists and reloads labeled rows per source.
type LabelStore interface {
	Save(records []models.LabeledRecord, source models.SourceKind) error
	Load(source models.SourceKind) ([]models.LabeledRecord, error)
	LoadAll() ([]models.LabeledRecord, error)
}
