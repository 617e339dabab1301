package retrieval

import (
	"context"
	"testing"

	"github.com/kbridge-ai/kbridge/internal/filter"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocs(t *testing.T, s *LocalStore) {
	t.Helper()
	docs := []struct {
		id   string
		text string
		meta map[string]any
	}{
		{
			id:   "doc-1",
			text: "Machine learning is a subset of artificial intelligence.",
			meta: map[string]any{
				"author_name":     "John Smith",
				"created_at_unix": float64(1754500000),
				"source_uri":      "s3://kb/ml.pdf",
			},
		},
		{
			id:   "doc-2",
			text: "Deep learning uses multi-layered neural networks for machine learning tasks.",
			meta: map[string]any{
				"author_name":     "Jane Doe",
				"created_at_unix": float64(1751000000),
				"source_uri":      "s3://kb/dl.pdf",
			},
		},
		{
			id:   "doc-3",
			text: "Gardening tips for the late summer season.",
			meta: map[string]any{
				"author_name":     "John Smith",
				"created_at_unix": float64(1754600000),
				"source_uri":      "s3://kb/garden.pdf",
			},
		},
	}
	for _, d := range docs {
		if err := s.Insert(context.Background(), d.id, d.text, d.meta); err != nil {
			t.Fatalf("Insert %s: %v", d.id, err)
		}
	}
}

func TestLocalStore_RetrieveUnfiltered(t *testing.T) {
	s := openTestStore(t)
	seedDocs(t, s)

	docs, err := s.Retrieve(context.Background(), "machine learning", 10, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	for _, d := range docs {
		if d.SourceURI == "" {
			t.Errorf("document missing SourceURI: %+v", d)
		}
		if d.Score <= 0 {
			t.Errorf("document has non-positive score: %+v", d)
		}
	}
}

func TestLocalStore_RetrieveWithFilter(t *testing.T) {
	s := openTestStore(t)
	seedDocs(t, s)

	f := filter.And(
		&filter.Leaf{Op: filter.OpIn, Key: "author_name", Value: "Smith"},
		&filter.Leaf{Op: filter.OpGreaterThanOrEquals, Key: "created_at_unix", Value: 1754006400},
	)

	docs, err := s.Retrieve(context.Background(), "machine learning", 10, f)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1: %+v", len(docs), docs)
	}
	if docs[0].SourceURI != "s3://kb/ml.pdf" {
		t.Errorf("SourceURI = %q, want the John Smith ML document", docs[0].SourceURI)
	}
}

func TestLocalStore_RetrieveRanking(t *testing.T) {
	s := openTestStore(t)
	seedDocs(t, s)

	docs, err := s.Retrieve(context.Background(), "deep learning neural networks", 10, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("no documents returned")
	}
	if docs[0].SourceURI != "s3://kb/dl.pdf" {
		t.Errorf("top document = %q, want the deep learning document", docs[0].SourceURI)
	}
}

func TestLocalStore_RetrieveLimit(t *testing.T) {
	s := openTestStore(t)
	seedDocs(t, s)

	docs, err := s.Retrieve(context.Background(), "learning", 1, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("got %d documents, want limit of 1", len(docs))
	}
}

func TestLocalStore_RetrieveEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	seedDocs(t, s)

	docs, err := s.Retrieve(context.Background(), "   ", 10, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if docs != nil {
		t.Errorf("got %d documents for empty query, want none", len(docs))
	}
}

func TestLocalStore_InsertReplace(t *testing.T) {
	s := openTestStore(t)

	if err := s.Insert(context.Background(), "doc-1", "first version", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(context.Background(), "doc-1", "second version of the document", nil); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1 after replace", n)
	}

	docs, err := s.Retrieve(context.Background(), "second version", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "second version of the document" {
		t.Errorf("Retrieve = %+v, want the replaced text", docs)
	}
}

func TestLocalStore_InsertEmptyID(t *testing.T) {
	s := openTestStore(t)
	if err := s.Insert(context.Background(), "", "text", nil); err == nil {
		t.Error("Insert with empty ID should fail")
	}
}
