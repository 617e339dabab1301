// Package bedrock wraps the AWS Bedrock runtime and agent-runtime APIs
// behind the two narrow capabilities the rest of the system needs: chat
// completion against a foundation model and filtered knowledge-base
// retrieval.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Message represents a chat message in the model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures AWS access and generation defaults.
type Options struct {
	Region string

	// Static credentials. When empty the default AWS credential chain
	// applies (environment, shared config, instance role).
	AccessKeyID     string
	SecretAccessKey string

	// AssumeRoleARN, when set, layers an STS assume-role on top of the
	// resolved credentials. Used for cross-account knowledge bases.
	AssumeRoleARN string

	// Endpoint overrides for local stacks and tests against emulators.
	RuntimeEndpoint string
	AgentEndpoint   string

	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Client holds configured Bedrock service clients.
type Client struct {
	runtime *bedrockruntime.Client
	agent   *bedrockagentruntime.Client

	maxTokens   int
	temperature float64
	topP        float64
}

const defaultMaxTokens = 4096

// New resolves AWS configuration and constructs the service clients.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	if opts.AssumeRoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), opts.AssumeRoleARN)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		runtime: bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
			if opts.RuntimeEndpoint != "" {
				o.BaseEndpoint = aws.String(opts.RuntimeEndpoint)
			}
		}),
		agent: bedrockagentruntime.NewFromConfig(cfg, func(o *bedrockagentruntime.Options) {
			if opts.AgentEndpoint != "" {
				o.BaseEndpoint = aws.String(opts.AgentEndpoint)
			}
		}),
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		topP:        opts.TopP,
	}, nil
}

// claudeRequest is the Anthropic messages body for InvokeModel.
type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
	Temperature      float64         `json:"temperature,omitempty"`
	TopP             float64         `json:"top_p,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Chat sends the conversation to the given model and returns the
// assistant's text. Messages with the system role are lifted into the
// request's system field, as the messages API requires.
func (c *Client) Chat(ctx context.Context, modelID string, messages []Message) (string, error) {
	req := claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		TopP:             c.topP,
	}

	var system []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, claudeMessage(m))
	}
	req.System = strings.Join(system, "\n\n")

	if len(req.Messages) == 0 {
		return "", fmt.Errorf("chat: no user or assistant messages")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoking model %s: %w", modelID, err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
