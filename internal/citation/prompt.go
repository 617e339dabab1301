package citation

import (
	"fmt"
	"strings"

	"github.com/kbridge-ai/kbridge/internal/bedrock"
	"github.com/kbridge-ai/kbridge/internal/retrieval"
)

const attributionSystemPrompt = `You are a citation attribution engine. You receive a generated answer and the numbered source chunks it was based on. Identify which chunks support which parts of the answer. Your output must be ONLY a single valid JSON object of this exact shape. Do not include any other text, prose, or markdown.

{"citations": [{"answer_text": "...", "chunk_ids": [1]}]}

Rules:
- "answer_text" must be a short span copied verbatim from the answer.
- "chunk_ids" lists the numbers of every chunk that supports that span.
- Only attribute spans that are clearly supported by a chunk.
- When nothing can be attributed, return {"citations": []}.`

func buildAttributionPrompt(answer string, docs []retrieval.Document) []bedrock.Message {
	var sb strings.Builder
	sb.WriteString("Answer:\n")
	sb.WriteString(answer)
	sb.WriteString("\n\nSource chunks:\n")
	for i, doc := range docs {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, doc.Text)
	}

	return []bedrock.Message{
		{Role: "system", Content: attributionSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}
