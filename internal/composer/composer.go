// Package composer assembles retrieved documents into the generation
// prompt. Metadata is included selectively: only the fields the filter
// referenced, plus a configured always-include set, reach the model.
package composer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kbridge-ai/kbridge/internal/retrieval"
)

const defaultMaxHistory = 10

// Turn is one prior message in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Composer renders retrieved documents and conversation history into the
// prompt for answer generation.
type Composer struct {
	alwaysInclude []string
	maxHistory    int
}

// New creates a Composer. alwaysInclude lists metadata fields shown for
// every document regardless of the filter, in presentation order.
// If maxHistory <= 0, the default (10) is used.
func New(alwaysInclude []string, maxHistory int) *Composer {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Composer{
		alwaysInclude: append([]string(nil), alwaysInclude...),
		maxHistory:    maxHistory,
	}
}

// Assemble renders the documents into numbered context blocks:
//
//	[Document 1]
//	Metadata:
//	  - created_at_iso: 2025-08-15T10:30:00Z
//	  - source_uri: s3://bucket/doc.pdf
//	Source: s3://bucket/doc.pdf
//	<document text>
//
// activeKeys are the schema keys the retrieval filter referenced. The
// metadata section lists always-include fields first, then active keys in
// lexicographic order; fields absent from a document are simply omitted.
// Documents without text keep their number but produce no block, so the
// numbering stays aligned with the retrieval result order. An empty
// result set yields an empty string.
func (c *Composer) Assemble(docs []retrieval.Document, activeKeys map[string]struct{}) string {
	var sb strings.Builder
	for i, doc := range docs {
		if doc.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "[Document %d]\n", i+1)

		if lines := c.metadataLines(doc.Metadata, activeKeys); len(lines) > 0 {
			sb.WriteString("Metadata:\n")
			for _, line := range lines {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		if doc.SourceURI != "" {
			fmt.Fprintf(&sb, "Source: %s\n", doc.SourceURI)
		}
		sb.WriteString(doc.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (c *Composer) metadataLines(meta map[string]any, active map[string]struct{}) []string {
	if len(meta) == 0 {
		return nil
	}

	var lines []string
	seen := make(map[string]struct{})
	add := func(key string) {
		if _, dup := seen[key]; dup {
			return
		}
		v, ok := meta[key]
		if !ok {
			return
		}
		seen[key] = struct{}{}
		lines = append(lines, fmt.Sprintf("  - %s: %s", key, formatValue(v)))
	}

	for _, key := range c.alwaysInclude {
		add(key)
	}

	rest := make([]string, 0, len(active))
	for key := range active {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		add(key)
	}

	return lines
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%v", v)
}

// FormatHistory renders prior conversation turns for the generation
// prompt, keeping only the most recent maxHistory. Turns with roles other
// than user or assistant are skipped. No usable turns yield an empty
// string.
func (c *Composer) FormatHistory(turns []Turn) string {
	if len(turns) > c.maxHistory {
		turns = turns[len(turns)-c.maxHistory:]
	}

	var sb strings.Builder
	for _, t := range turns {
		switch t.Role {
		case "user":
			fmt.Fprintf(&sb, "User: %s\n\n", t.Content)
		case "assistant":
			fmt.Fprintf(&sb, "Assistant: %s\n\n", t.Content)
		}
	}
	if sb.Len() == 0 {
		return ""
	}
	return "Previous conversation:\n\n" + sb.String()
}

// BuildPrompt combines formatted history, the assembled context, and the
// user's question into the final generation prompt.
func BuildPrompt(history, context, query string) string {
	var sb strings.Builder
	if history != "" {
		sb.WriteString(history)
		sb.WriteString("\n")
	}
	sb.WriteString("The following information was retrieved from a knowledge base:\n\n")
	sb.WriteString(context)
	sb.WriteString("\nBased on this information, please answer the following question:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nIf the information doesn't contain a clear answer, please say so.")
	return sb.String()
}
