// Package classifier wraps the AWS Bedrock runtime for the two LLM
// jobs the agent has: structural pattern extraction from harvested
// posts, and free-form text completion for the generator.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

const defaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

// invoker is the slice of the Bedrock runtime client we use, extracted
// so tests can stub the API.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client talks to a Bedrock-hosted model.
type Client struct {
	client  invoker
	modelID string
	region  string
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClient creates a Bedrock-backed classifier using the default AWS
// credential chain. An empty modelID falls back to Claude Haiku, which
// is plenty for structural classification.
func NewClient(ctx context.Context, modelID string) (*Client, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if modelID == "" {
		modelID = defaultModelID
	}

	logger.Info("classifier initialized", "model_id", modelID, "region", region)
	return &Client{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		region:  region,
	}, nil
}

// Complete sends one user message and returns the model's text output.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	request := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Temperature:      temperature,
		Messages: []bedrockMessage{
			{Role: "user", Content: []contentBlock{{Type: "text", Text: user}}},
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock API error: %w", err)
	}

	var response bedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	logger.Debug("bedrock completion",
		"model_id", c.modelID,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens)
	return text, nil
}

const extractionSystemPrompt = `You classify social media posts into structural patterns. Respond with ONLY a JSON object, no prose, with exactly these keys:
{
  "format": one of "listicle","question","statement","story","howto","hot_take",
  "hook_type": one of "curiosity","contrarian","empathy","urgency","authority","humor",
  "payload_type": one of "tip","insight","news","opinion","resource",
  "rhetorical": short free-form label for the rhetorical device,
  "length_bucket": one of "short","medium","long",
  "emoji_density": one of "none","low","high",
  "punctuation_style": short free-form label,
  "taboo_flags": array of strings from "political","medical","financial_advice","adult","harassment" (empty if clean),
  "quality_score": number 0.0-1.0 for how clear and reusable the structure is
}`

// ExtractPattern classifies one post's structure. Temperature is zero:
// classification should be deterministic for the same text.
func (c *Client) ExtractPattern(ctx context.Context, text string) (*domain.PatternExtraction, error) {
	raw, err := c.Complete(ctx, extractionSystemPrompt, text, 500, 0)
	if err != nil {
		return nil, err
	}
	return parseExtraction(raw)
}
