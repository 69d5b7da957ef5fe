package keywords

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

//go:embed system_prompt.txt
var systemPrompt string

var outputFormat = anthropic.BetaJSONSchemaOutputFormat(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"keywords": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"keywords"},
})

// Claude asks a Claude model for the keywords.
type Claude struct {
	client *anthropic.Client
}

func NewClaude(client *anthropic.Client) *Claude {
	return &Claude{client: client}
}

func (c *Claude) Extract(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := c.client.Beta.Messages.New(ctx, anthropic.BetaMessageNewParams{
		Model: anthropic.ModelClaudeHaiku4_5,
		Betas: []anthropic.AnthropicBeta{
			"structured-outputs-2025-11-13",
		},
		MaxTokens:    256,
		OutputFormat: outputFormat,
		System: []anthropic.BetaTextBlockParam{{
			Text: systemPrompt,
		}},
		Messages: []anthropic.BetaMessageParam{
			anthropic.NewBetaUserMessage(anthropic.NewBetaTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error calling claude: %w", err)
	}

	var raw strings.Builder
	for _, content := range resp.Content {
		raw.WriteString(content.Text)
	}

	var out struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(raw.String()), &out); err != nil {
		return nil, fmt.Errorf("error unmarshaling claude json: %s", err)
	}

	return clean(out.Keywords), nil
}

// clean trims, drops blanks and case-insensitive repeats, and caps the list.
func clean(in []string) []string {
	var (
		kws  []string
		seen = make(map[string]struct{})
	)
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		kws = append(kws, kw)
		if len(kws) == MaxKeywords {
			break
		}
	}

	return kws
}
