// Package api exposes the query pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kbridge-ai/kbridge/internal/composer"
	"github.com/kbridge-ai/kbridge/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1MB

// QueryAnswerer abstracts the answer pipeline for the API layer.
type QueryAnswerer interface {
	Answer(ctx context.Context, query string, history []composer.Turn) (string, pipeline.Metadata, error)
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query           string          `json:"query"`
	History         []composer.Turn `json:"history,omitempty"`
	IncludeMetadata bool            `json:"include_metadata,omitempty"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Answer   string             `json:"answer"`
	Metadata *pipeline.Metadata `json:"metadata,omitempty"`
}

// NewHandler returns the HTTP API. When token is non-empty, the query
// endpoint requires bearer authentication; /health stays open either way.
func NewHandler(answerer QueryAnswerer, token string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if token != "" {
			r.Use(BearerAuth(token))
		}
		r.Post("/v1/query", handleQuery(answerer))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleQuery(answerer QueryAnswerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		answer, meta, err := answerer.Answer(r.Context(), req.Query, req.History)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "query failed: %v", err)
			return
		}

		resp := QueryResponse{Answer: answer}
		if req.IncludeMetadata {
			resp.Metadata = &meta
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
