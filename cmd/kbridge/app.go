package main

import (
	"context"
	"fmt"

	"github.com/kbridge-ai/kbridge/internal/bedrock"
	"github.com/kbridge-ai/kbridge/internal/citation"
	"github.com/kbridge-ai/kbridge/internal/composer"
	"github.com/kbridge-ai/kbridge/internal/config"
	"github.com/kbridge-ai/kbridge/internal/extraction"
	"github.com/kbridge-ai/kbridge/internal/filter"
	"github.com/kbridge-ai/kbridge/internal/pipeline"
	"github.com/kbridge-ai/kbridge/internal/retrieval"
)

// app bundles the wired pipeline and whatever needs closing on exit.
type app struct {
	answerer *pipeline.Answerer
	store    *retrieval.LocalStore // nil for the bedrock backend
}

// buildApp wires the full query pipeline from configuration: a Bedrock
// client for generation and extraction, the retrieval backend, and the
// composer and citation stages.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	var schema filter.Schema
	if cfg.Pipeline.EnableFiltering {
		var err error
		schema, err = config.LoadSchema(cfg.Pipeline.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("loading metadata schema: %w", err)
		}
	}

	client, err := bedrock.New(ctx, bedrock.Options{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		AssumeRoleARN:   cfg.AWS.AssumeRoleARN,
		RuntimeEndpoint: cfg.AWS.RuntimeEndpoint,
		AgentEndpoint:   cfg.AWS.AgentEndpoint,
		MaxTokens:       cfg.Model.MaxTokens,
		Temperature:     cfg.Model.Temperature,
		TopP:            cfg.Model.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring bedrock client: %w", err)
	}

	var (
		retriever retrieval.Retriever
		store     *retrieval.LocalStore
	)
	switch cfg.Retrieval.Backend {
	case "local":
		store, err = retrieval.OpenLocal(cfg.Retrieval.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		retriever = store
	default:
		retriever = client.KnowledgeBase(cfg.Retrieval.KnowledgeBaseID)
	}

	extractor := extraction.NewExtractor(client, cfg.Model.FilterID)
	comp := composer.New(cfg.Pipeline.AlwaysInclude, cfg.Pipeline.MaxHistory)
	attributor := citation.NewAttributor(client, cfg.Model.FilterID, cfg.Pipeline.EnableCitations)

	answerer := pipeline.NewAnswerer(extractor, retriever, client, comp, attributor, pipeline.Options{
		ModelID: cfg.Model.GenerationID,
		Results: cfg.Retrieval.Results,
		Schema:  schema,
	})

	return &app{answerer: answerer, store: store}, nil
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
