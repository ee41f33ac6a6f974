// Package tags derives a short descriptive label set for an ingested
// document. Tagging is best-effort: the coordinator degrades to an empty
// tag set on any failure rather than aborting ingestion.
package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

// MaxTags caps the label set stored on a document.
const MaxTags = 5

// DefaultMaxTokens is the maximum content length before truncation (in tokens).
const DefaultMaxTokens = 8000

// tagResponse is the JSON shape requested from the model.
type tagResponse struct {
	Tags []string `json:"tags"`
}

// Generator produces document tags with a small chat model.
type Generator struct {
	client    *openai.Client
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a tag generator with the given OpenAI client.
// Optional maxTokens sets the truncation limit (defaults to DefaultMaxTokens).
func NewGenerator(client *openai.Client, logger *slog.Logger, maxTokens ...int) *Generator {
	limit := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		limit = maxTokens[0]
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		maxTokens: limit,
		logger:    logger,
	}
}

// GenerateTags analyzes document content and produces up to MaxTags short
// descriptive labels.
func (g *Generator) GenerateTags(ctx context.Context, title, content string) ([]string, error) {
	truncated := g.truncateContent(content)

	prompt := fmt.Sprintf(`Generate up to %d short topical tags for this personal note.
Tags are one or two lowercase words each, describing the subjects the note covers.

Title: %s

Content:
%s

Respond in JSON format:
{"tags": ["tag one", "tag two"]}`, MaxTags, title, truncated)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4oMini,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	var parsed tagResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return clampTags(parsed.Tags), nil
}

// clampTags drops blank entries and enforces the MaxTags cap.
func clampTags(raw []string) []string {
	tags := make([]string, 0, MaxTags)
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tags = append(tags, t)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

// truncateContent truncates content to fit within token limits.
// Uses a rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}

	g.logger.Debug("truncating content for tagging",
		"from", len(content), "to", maxChars)
	return content[:maxChars]
}
