// Package retrieval defines the document model shared by all retrieval
// backends and provides a local SQLite-backed store for development and
// tests.
package retrieval

import (
	"context"

	"github.com/kbridge-ai/kbridge/internal/filter"
)

// Document is one retrieved knowledge-base chunk together with its
// metadata. SourceURI duplicates the source_uri metadata field when the
// backend reports a location separately.
type Document struct {
	Text      string
	Metadata  map[string]any
	SourceURI string
	Score     float64
}

// Retriever finds the documents most relevant to a query. A nil filter
// means unconstrained search; a non-nil filter restricts results to
// documents whose metadata satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int, f filter.Node) ([]Document, error)
}
