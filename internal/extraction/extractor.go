// Package extraction turns a free-text user query into structured temporal
// and name references, each bound to a metadata field, using a Bedrock
// foundation model.
package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kbridge-ai/kbridge/internal/bedrock"
	"github.com/kbridge-ai/kbridge/internal/filter"
)

const extractionTimeout = 30 * time.Second

// Chatter is the interface for chat completion against a Bedrock model.
type Chatter interface {
	Chat(ctx context.Context, modelID string, messages []bedrock.Message) (string, error)
}

// TemporalRef is one time expression found in the query, resolved to an
// explicit range and bound to a schema field.
type TemporalRef struct {
	Original string `json:"original"`
	Range    string `json:"range"`
	Field    string `json:"field"`
}

// NameRef is one person name found in the query, with its surrounding
// words and the schema field it should filter on.
type NameRef struct {
	Original string `json:"original"`
	Context  string `json:"context"`
	Field    string `json:"field"`
}

// References holds the structured extraction result for a query.
type References struct {
	Temporal []TemporalRef `json:"temporal"`
	Names    []NameRef     `json:"names"`
}

// Extractor uses a Bedrock model to extract filterable references from
// user queries.
type Extractor struct {
	client  Chatter
	modelID string
	now     func() time.Time
}

// NewExtractor creates an Extractor using the given chat client and model ID.
func NewExtractor(client Chatter, modelID string) *Extractor {
	return &Extractor{client: client, modelID: modelID, now: time.Now}
}

// Extract analyses the query against the metadata schema and returns the
// references found. On any failure (timeout, model error, malformed JSON)
// it returns zero References — the pipeline falls back to unfiltered
// retrieval rather than blocking the query.
func (e *Extractor) Extract(ctx context.Context, query string, schema filter.Schema) References {
	if query == "" || schema.Len() == 0 {
		return References{}
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	messages := BuildPrompt(query, schema, e.now().UTC())

	raw, err := e.client.Chat(ctx, e.modelID, messages)
	if err != nil {
		slog.Warn("reference extraction chat failed", "error", err)
		return References{}
	}

	var result References
	if err := json.Unmarshal([]byte(StripFences(raw)), &result); err != nil {
		slog.Warn("failed to unmarshal references from model response", "error", err, "response", raw)
		return References{}
	}
	return result
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, from model output. Input without a fence passes through.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag line ("json", "JSON", ...), if any.
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
