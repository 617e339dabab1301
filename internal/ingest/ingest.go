// Package ingest loads documents from the filesystem into the local
// store, picking up metadata sidecars along the way.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

const sidecarSuffix = ".metadata.json"

// DocumentStore abstracts document insertion for the ingester.
type DocumentStore interface {
	Insert(ctx context.Context, id, text string, metadata map[string]any) error
}

// Stats summarizes one ingest run.
type Stats struct {
	Ingested int
	Skipped  int
}

// Ingester walks a directory tree and stores every supported document.
type Ingester struct {
	store DocumentStore
}

// New creates an Ingester writing to the given store.
func New(store DocumentStore) *Ingester {
	return &Ingester{store: store}
}

// Run ingests every .txt, .md, and .pdf file under dir. A sidecar named
// <file>.metadata.json supplies metadata for its document, either as a
// flat object or under a metadataAttributes wrapper; source_uri and the
// created_at fields default from the file itself when the sidecar omits
// them. Unsupported files are counted as skipped, and a file that fails
// to read is logged and skipped rather than aborting the run.
func (ig *Ingester) Run(ctx context.Context, dir string) (Stats, error) {
	var paths []string
	var stats Stats

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, sidecarSuffix) {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".pdf":
			paths = append(paths, path)
		default:
			stats.Skipped++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", dir, err)
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to keep file handles in check.

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ig.ingestFile(gCtx, path); err != nil {
				slog.Warn("skipping file", "path", path, "error", err)
				mu.Lock()
				stats.Skipped++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			stats.Ingested++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (ig *Ingester) ingestFile(ctx context.Context, path string) error {
	text, err := readDocument(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no extractable text")
	}

	meta, err := loadSidecar(path)
	if err != nil {
		return err
	}
	applyDefaults(meta, path)

	return ig.store.Insert(ctx, uuid.New().String(), text, meta)
}

func readDocument(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		return readPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

func loadSidecar(path string) (map[string]any, error) {
	data, err := os.ReadFile(path + sidecarSuffix)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing sidecar: %w", err)
	}

	// Bedrock-style sidecars nest fields under metadataAttributes.
	if wrapped, ok := raw["metadataAttributes"].(map[string]any); ok {
		return wrapped, nil
	}
	return raw, nil
}

func applyDefaults(meta map[string]any, path string) {
	if _, ok := meta["source_uri"]; !ok {
		if abs, err := filepath.Abs(path); err == nil {
			meta["source_uri"] = "file://" + abs
		} else {
			meta["source_uri"] = "file://" + path
		}
	}

	hasISO := false
	if _, ok := meta["created_at_iso"]; ok {
		hasISO = true
	}
	hasUnix := false
	if _, ok := meta["created_at_unix"]; ok {
		hasUnix = true
	}
	if hasISO && hasUnix {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mod := info.ModTime().UTC()
	if !hasISO {
		meta["created_at_iso"] = mod.Format(time.RFC3339)
	}
	if !hasUnix {
		meta["created_at_unix"] = mod.Unix()
	}
}
