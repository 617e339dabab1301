package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbridge-ai/kbridge/internal/composer"
	"github.com/kbridge-ai/kbridge/internal/pipeline"
)

// mockAnswerer implements QueryAnswerer for testing.
type mockAnswerer struct {
	answer string
	meta   pipeline.Metadata
	err    error

	gotQuery   string
	gotHistory []composer.Turn
}

func (m *mockAnswerer) Answer(ctx context.Context, query string, history []composer.Turn) (string, pipeline.Metadata, error) {
	m.gotQuery = query
	m.gotHistory = history
	return m.answer, m.meta, m.err
}

func TestHealth(t *testing.T) {
	handler := NewHandler(&mockAnswerer{}, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestQuery(t *testing.T) {
	mock := &mockAnswerer{
		answer: "ML is a field of AI. [1]",
		meta:   pipeline.Metadata{FilterApplied: true, DocumentsUsed: 2},
	}
	handler := NewHandler(mock, "")

	body := `{"query":"what is ML","history":[{"role":"user","content":"hi"}],"include_metadata":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "ML is a field of AI. [1]" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Metadata == nil || !resp.Metadata.FilterApplied || resp.Metadata.DocumentsUsed != 2 {
		t.Errorf("metadata = %+v", resp.Metadata)
	}

	if mock.gotQuery != "what is ML" {
		t.Errorf("answerer received query %q", mock.gotQuery)
	}
	if len(mock.gotHistory) != 1 || mock.gotHistory[0].Content != "hi" {
		t.Errorf("answerer received history %+v", mock.gotHistory)
	}
}

func TestQuery_MetadataOmittedByDefault(t *testing.T) {
	mock := &mockAnswerer{answer: "Answer."}
	handler := NewHandler(mock, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "metadata") {
		t.Errorf("metadata should be omitted unless requested: %s", rec.Body.String())
	}
}

func TestQuery_MissingQuery(t *testing.T) {
	handler := NewHandler(&mockAnswerer{}, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_request_error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestQuery_InvalidBody(t *testing.T) {
	handler := NewHandler(&mockAnswerer{}, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQuery_PipelineError(t *testing.T) {
	handler := NewHandler(&mockAnswerer{err: fmt.Errorf("bedrock unavailable")}, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestQuery_BearerAuth(t *testing.T) {
	handler := NewHandler(&mockAnswerer{answer: "Answer."}, "secret-token")

	// Missing token.
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", rec.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with wrong token = %d, want 401", rec.Code)
	}

	// Correct token.
	req = httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with correct token = %d, want 200", rec.Code)
	}

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", rec.Code)
	}
}
