package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbridge-ai/kbridge/internal/bedrock"
	"github.com/kbridge-ai/kbridge/internal/filter"
)

const systemPromptTemplate = `You are a query analysis engine for knowledge-base retrieval. Analyze the user's query and extract every temporal reference and every person name that could narrow the search. Your output must be ONLY a single valid JSON object of this exact shape. Do not include any other text, prose, or markdown.

{"temporal": [{"original": "...", "range": "from <ISO8601> to <ISO8601>", "field": "..."}], "names": [{"original": "...", "context": "...", "field": "..."}]}

Rules for temporal references:
- Resolve relative expressions ("last month", "this week", "yesterday") against today's date.
- "range" must read "from <start> to <end>" with RFC 3339 UTC timestamps.
- A calendar period covers exactly its extent: "August 2025" becomes from 2025-08-01T00:00:00Z to 2025-08-31T23:59:59Z.
- "field" must be a NUMBER field from the schema that stores Unix epoch seconds.

Rules for name references:
- "original" is the name exactly as written, including any title.
- "context" is the few words around the name that show its role (author, subject, recipient).
- "field" must be a STRING field from the schema that stores names.

Today's date is %s.

Metadata schema (the only fields you may reference):
%s

When the query contains no temporal references and no names, return {"temporal": [], "names": []}.`

// BuildPrompt constructs the chat messages for reference extraction.
// The current date lets the model resolve relative time expressions.
func BuildPrompt(query string, schema filter.Schema, now time.Time) []bedrock.Message {
	system := fmt.Sprintf(systemPromptTemplate,
		now.Format("2006-01-02"),
		strings.TrimRight(schema.Render(), "\n"),
	)

	return []bedrock.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: query},
	}
}
