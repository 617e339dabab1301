// Package pipeline orchestrates query answering: reference extraction,
// filter construction, retrieval, context assembly, answer generation,
// and citation attribution.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kbridge-ai/kbridge/internal/bedrock"
	"github.com/kbridge-ai/kbridge/internal/composer"
	"github.com/kbridge-ai/kbridge/internal/entity"
	"github.com/kbridge-ai/kbridge/internal/extraction"
	"github.com/kbridge-ai/kbridge/internal/filter"
	"github.com/kbridge-ai/kbridge/internal/retrieval"
	"github.com/kbridge-ai/kbridge/internal/timerange"
)

// NoResultsAnswer is returned when retrieval yields no usable documents.
const NoResultsAnswer = "I couldn't find any relevant information in the knowledge base."

const defaultResults = 5

// Extractor extracts filterable references from a query.
type Extractor interface {
	Extract(ctx context.Context, query string, schema filter.Schema) extraction.References
}

// Chatter is the interface for chat completion against a Bedrock model.
type Chatter interface {
	Chat(ctx context.Context, modelID string, messages []bedrock.Message) (string, error)
}

// Annotator adds citations to a generated answer.
type Annotator interface {
	Annotate(ctx context.Context, answer string, docs []retrieval.Document) string
}

// Metadata captures diagnostic information about one answered query.
type Metadata struct {
	FilterApplied   bool     `json:"filter_applied"`
	Filter          string   `json:"filter,omitempty"`
	ActiveKeys      []string `json:"active_keys,omitempty"`
	DroppedBindings []string `json:"dropped_bindings,omitempty"`
	RetryUnfiltered bool     `json:"retry_unfiltered,omitempty"`
	DocumentsUsed   int      `json:"documents_used"`
	DurationMs      int64    `json:"duration_ms"`
}

// Options configures an Answerer.
type Options struct {
	// ModelID is the Bedrock model used for answer generation.
	ModelID string
	// Results is how many documents to retrieve (default 5 if <= 0).
	Results int
	// Schema declares the metadata fields filters may reference.
	Schema filter.Schema
}

// Answerer runs the full query pipeline. Every stage before generation
// degrades gracefully: a failed extraction, an unparsable range, or an
// unknown field narrows the filter instead of failing the query.
type Answerer struct {
	extractor  Extractor
	retriever  retrieval.Retriever
	chatter    Chatter
	composer   *composer.Composer
	attributor Annotator

	modelID string
	results int
	schema  filter.Schema
}

// NewAnswerer creates an Answerer wired to all pipeline components.
func NewAnswerer(
	ext Extractor,
	ret retrieval.Retriever,
	chat Chatter,
	comp *composer.Composer,
	attr Annotator,
	opts Options,
) *Answerer {
	results := opts.Results
	if results <= 0 {
		results = defaultResults
	}
	return &Answerer{
		extractor:  ext,
		retriever:  ret,
		chatter:    chat,
		composer:   comp,
		attributor: attr,
		modelID:    opts.ModelID,
		results:    results,
		schema:     opts.Schema,
	}
}

// Answer runs the pipeline for one query:
//  1. Extract temporal and name references from the query.
//  2. Parse temporal ranges; skip any that don't parse.
//  3. Resolve name elements, dropping honorific titles.
//  4. Build the metadata filter; bindings hitting unknown fields are dropped.
//  5. Retrieve documents; a failed filtered retrieval retries unfiltered.
//  6. Assemble context and generate the answer.
//  7. Attribute citations.
//
// An error is returned only when retrieval or generation fail outright.
func (a *Answerer) Answer(ctx context.Context, query string, history []composer.Turn) (string, Metadata, error) {
	start := time.Now()
	var meta Metadata
	defer func() {
		meta.DurationMs = time.Since(start).Milliseconds()
	}()

	refs := a.extractor.Extract(ctx, query, a.schema)

	var temporals []filter.TemporalBinding
	for _, tr := range refs.Temporal {
		r, err := timerange.Parse(tr.Range)
		if err != nil {
			slog.Warn("skipping unparsable temporal reference", "range", tr.Range, "error", err)
			continue
		}
		temporals = append(temporals, filter.TemporalBinding{Range: r, Key: tr.Field})
	}

	var names []filter.NameBinding
	for _, nr := range refs.Names {
		elements := entity.ParseNameElements(nr.Original)
		if len(elements) == 0 {
			continue
		}
		names = append(names, filter.NameBinding{
			Name: entity.Reference{
				Original: nr.Original,
				Elements: elements,
				Role:     entity.ParseRole(nr.Context),
			},
			Key: nr.Field,
		})
	}

	node, dropped := filter.Build(temporals, names, nil, a.schema)
	for _, err := range dropped {
		slog.Warn("dropping filter binding", "error", err)
		meta.DroppedBindings = append(meta.DroppedBindings, err.Error())
	}
	if node != nil {
		meta.FilterApplied = true
		if encoded, err := json.Marshal(node); err == nil {
			meta.Filter = string(encoded)
		}
	}

	activeKeys := filter.Keys(node)
	for key := range activeKeys {
		meta.ActiveKeys = append(meta.ActiveKeys, key)
	}
	sort.Strings(meta.ActiveKeys)

	docs, err := a.retriever.Retrieve(ctx, query, a.results, node)
	if err != nil && node != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("filtered retrieval failed, retrying unfiltered", "error", err)
		meta.RetryUnfiltered = true
		docs, err = a.retriever.Retrieve(ctx, query, a.results, nil)
	}
	if err != nil {
		return "", meta, fmt.Errorf("retrieving documents: %w", err)
	}

	contextBlock := a.composer.Assemble(docs, activeKeys)
	if contextBlock == "" {
		return NoResultsAnswer, meta, nil
	}
	meta.DocumentsUsed = len(docs)

	prompt := composer.BuildPrompt(a.composer.FormatHistory(history), contextBlock, query)
	answer, err := a.chatter.Chat(ctx, a.modelID, []bedrock.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", meta, fmt.Errorf("generating answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	slog.Debug("query answered",
		"filter_applied", meta.FilterApplied,
		"documents_used", meta.DocumentsUsed,
		"retry_unfiltered", meta.RetryUnfiltered,
	)

	return a.attributor.Annotate(ctx, answer, docs), meta, nil
}
