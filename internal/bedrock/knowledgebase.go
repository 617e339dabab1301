package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/kbridge-ai/kbridge/internal/filter"
	"github.com/kbridge-ai/kbridge/internal/retrieval"
)

// KnowledgeBase retrieves documents from one AWS Bedrock knowledge base
// using hybrid (vector plus keyword) search. It implements
// retrieval.Retriever.
type KnowledgeBase struct {
	client *bedrockagentruntime.Client
	id     string
}

// KnowledgeBase returns a retriever bound to the given knowledge base ID.
func (c *Client) KnowledgeBase(id string) *KnowledgeBase {
	return &KnowledgeBase{client: c.agent, id: id}
}

// Retrieve runs a hybrid search, constrained by the filter when non-nil.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string, limit int, f filter.Node) ([]retrieval.Document, error) {
	search := &types.KnowledgeBaseVectorSearchConfiguration{
		NumberOfResults:    aws.Int32(int32(limit)),
		OverrideSearchType: types.SearchTypeHybrid,
	}
	if f != nil {
		rf, err := toRetrievalFilter(f)
		if err != nil {
			return nil, err
		}
		search.Filter = rf
	}

	out, err := kb.client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(kb.id),
		RetrievalQuery:  &types.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &types.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: search,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving from knowledge base %s: %w", kb.id, err)
	}

	docs := make([]retrieval.Document, 0, len(out.RetrievalResults))
	for _, res := range out.RetrievalResults {
		var d retrieval.Document
		if res.Content != nil && res.Content.Text != nil {
			d.Text = *res.Content.Text
		}
		if res.Score != nil {
			d.Score = *res.Score
		}
		d.Metadata = decodeMetadata(res.Metadata)
		d.SourceURI = locationURI(res.Location, d.Metadata)
		docs = append(docs, d)
	}
	return docs, nil
}

// toRetrievalFilter converts the boolean tree into the SDK's union type.
func toRetrievalFilter(n filter.Node) (types.RetrievalFilter, error) {
	switch t := n.(type) {
	case *filter.Group:
		parts := make([]types.RetrievalFilter, len(t.Children))
		for i, ch := range t.Children {
			p, err := toRetrievalFilter(ch)
			if err != nil {
				return nil, err
			}
			parts[i] = p
		}
		if t.Combinator == filter.CombinatorAnd {
			return &types.RetrievalFilterMemberAndAll{Value: parts}, nil
		}
		return &types.RetrievalFilterMemberOrAll{Value: parts}, nil

	case *filter.Leaf:
		attr := types.FilterAttribute{
			Key:   aws.String(t.Key),
			Value: document.NewLazyDocument(t.Value),
		}
		switch t.Op {
		case filter.OpEquals:
			return &types.RetrievalFilterMemberEquals{Value: attr}, nil
		case filter.OpNotEquals:
			return &types.RetrievalFilterMemberNotEquals{Value: attr}, nil
		case filter.OpIn:
			return &types.RetrievalFilterMemberIn{Value: attr}, nil
		case filter.OpNotIn:
			return &types.RetrievalFilterMemberNotIn{Value: attr}, nil
		case filter.OpGreaterThan:
			return &types.RetrievalFilterMemberGreaterThan{Value: attr}, nil
		case filter.OpGreaterThanOrEquals:
			return &types.RetrievalFilterMemberGreaterThanOrEquals{Value: attr}, nil
		case filter.OpLessThan:
			return &types.RetrievalFilterMemberLessThan{Value: attr}, nil
		case filter.OpLessThanOrEquals:
			return &types.RetrievalFilterMemberLessThanOrEquals{Value: attr}, nil
		case filter.OpStringContains:
			return &types.RetrievalFilterMemberStringContains{Value: attr}, nil
		}
		return nil, fmt.Errorf("unsupported filter operator %q", t.Op)
	}
	return nil, fmt.Errorf("unsupported filter node %T", n)
}

func decodeMetadata(raw map[string]document.Interface) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	meta := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := v.UnmarshalSmithyDocument(&val); err != nil {
			continue
		}
		meta[k] = val
	}
	return meta
}

func locationURI(loc *types.RetrievalResultLocation, meta map[string]any) string {
	if loc != nil {
		if loc.S3Location != nil && loc.S3Location.Uri != nil {
			return *loc.S3Location.Uri
		}
		if loc.WebLocation != nil && loc.WebLocation.Url != nil {
			return *loc.WebLocation.Url
		}
	}
	for _, key := range []string{"source_uri", "x-amz-bedrock-kb-source-uri"} {
		if v, ok := meta[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
