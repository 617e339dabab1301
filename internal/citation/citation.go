// Package citation attributes segments of a generated answer to the
// retrieved documents that support them, inserting inline markers and
// appending a numbered source list.
package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kbridge-ai/kbridge/internal/bedrock"
	"github.com/kbridge-ai/kbridge/internal/extraction"
	"github.com/kbridge-ai/kbridge/internal/retrieval"
)

const attributionTimeout = 30 * time.Second

// Chatter is the interface for chat completion against a Bedrock model.
type Chatter interface {
	Chat(ctx context.Context, modelID string, messages []bedrock.Message) (string, error)
}

// Attributor maps answer segments to their supporting documents using a
// lightweight model and formats the result.
type Attributor struct {
	client  Chatter
	modelID string
	enabled bool
}

// NewAttributor creates an Attributor. When enabled is false, Annotate
// returns answers unchanged without calling the model.
func NewAttributor(client Chatter, modelID string, enabled bool) *Attributor {
	return &Attributor{client: client, modelID: modelID, enabled: enabled}
}

// segment is one attribution returned by the model: a verbatim span of
// the answer and the 1-based result numbers that support it.
type segment struct {
	AnswerText string `json:"answer_text"`
	ChunkIDs   []int  `json:"chunk_ids"`
}

type attribution struct {
	Citations []segment `json:"citations"`
}

// Annotate inserts inline citation markers ([1], [1,2]) after the first
// occurrence of each attributed segment and appends a numbered citation
// list. Citation numbers are assigned in order of first use in the
// answer. On any failure — model error, malformed response, no usable
// attributions — the answer is returned unchanged.
func (a *Attributor) Annotate(ctx context.Context, answer string, docs []retrieval.Document) string {
	if !a.enabled || answer == "" || len(docs) == 0 {
		return answer
	}

	ctx, cancel := context.WithTimeout(ctx, attributionTimeout)
	defer cancel()

	raw, err := a.client.Chat(ctx, a.modelID, buildAttributionPrompt(answer, docs))
	if err != nil {
		slog.Warn("citation attribution chat failed", "error", err)
		return answer
	}

	var attr attribution
	if err := json.Unmarshal([]byte(extraction.StripFences(raw)), &attr); err != nil {
		slog.Warn("failed to unmarshal citation attribution", "error", err, "response", raw)
		return answer
	}

	annotated, order := insertMarkers(answer, attr.Citations, len(docs))
	if len(order) == 0 {
		return answer
	}

	return annotated + formatCitationList(order, docs)
}

// insertMarkers rewrites the answer with inline markers and returns the
// cited document indices (0-based) in display order.
func insertMarkers(answer string, segments []segment, docCount int) (string, []int) {
	numbers := make(map[int]int) // 0-based doc index -> display number
	var order []int

	for _, seg := range segments {
		if seg.AnswerText == "" || !strings.Contains(answer, seg.AnswerText) {
			continue
		}

		var display []string
		for _, id := range seg.ChunkIDs {
			if id < 1 || id > docCount {
				continue
			}
			idx := id - 1
			num, ok := numbers[idx]
			if !ok {
				num = len(order) + 1
				numbers[idx] = num
				order = append(order, idx)
			}
			display = append(display, strconv.Itoa(num))
		}
		if len(display) == 0 {
			continue
		}

		marker := " [" + strings.Join(display, ",") + "]"
		answer = strings.Replace(answer, seg.AnswerText, seg.AnswerText+marker, 1)
	}

	return answer, order
}

const previewRunes = 50

func formatCitationList(order []int, docs []retrieval.Document) string {
	var sb strings.Builder
	sb.WriteString("\n\n---\n**Citations:**\n")
	for n, idx := range order {
		doc := docs[idx]
		uri := doc.SourceURI
		if uri == "" {
			if v, ok := doc.Metadata["source_uri"].(string); ok {
				uri = v
			}
		}
		fmt.Fprintf(&sb, "%d. \"%s\"", n+1, preview(doc.Text))
		if uri != "" {
			fmt.Fprintf(&sb, " - [%s](%s)", uri, uri)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= previewRunes {
		return string(runes)
	}
	return string(runes[:previewRunes]) + "..."
}
