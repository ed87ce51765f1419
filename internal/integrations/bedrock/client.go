package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"hirepal/internal/domain"
)

const (
	anthropicVersion    = "bedrock-2023-05-31"
	defaultMaxTokens    = 2048
	defaultTemperature  = 0.2
	stopReasonMaxTokens = "max_tokens"
	jsonPrefill         = "{"
)

// invoker is the subset of *bedrockruntime.Client used here.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
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
	StopReason string `json:"stop_reason"`
}

// Client drives an Anthropic Claude model hosted on Bedrock.
type Client struct {
	api         invoker
	modelID     string
	maxTokens   int
	temperature float64
}

type Option func(*Client)

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

func New(api invoker, modelID string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, errors.New("bedrock: model id must not be empty")
	}
	c := &Client{
		api:         api,
		modelID:     modelID,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chat sends the conversation and returns the raw JSON object produced by the
// model. The assistant turn is prefilled with "{" so Claude answers with the
// object directly; the prefill is restored on the way out.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	req := buildRequest(messages, c.maxTokens, c.temperature)
	if len(req.Messages) == 0 {
		return "", errors.New("bedrock: no user messages")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("bedrock: encode request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: invoke model: %w", err)
	}
	if out == nil {
		return "", errors.New("bedrock: empty response")
	}

	var resp claudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	if resp.StopReason == stopReasonMaxTokens {
		return "", errors.New("bedrock: response truncated at max_tokens")
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("bedrock: response had no text")
	}
	if !strings.HasPrefix(text, jsonPrefill) {
		text = jsonPrefill + text
	}
	return text, nil
}

// buildRequest folds system messages into the system field and merges
// consecutive same-role turns, since the Messages API requires strict
// user/assistant alternation starting with user.
func buildRequest(messages []domain.ChatMessage, maxTokens int, temperature float64) claudeRequest {
	var system []string
	var turns []claudeMessage
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, content)
			continue
		case domain.RoleUser, domain.RoleAssistant:
		default:
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + content
			continue
		}
		if len(turns) == 0 && m.Role == domain.RoleAssistant {
			continue
		}
		turns = append(turns, claudeMessage{Role: m.Role, Content: content})
	}

	if len(turns) > 0 && turns[len(turns)-1].Role == domain.RoleUser {
		turns = append(turns, claudeMessage{Role: domain.RoleAssistant, Content: jsonPrefill})
	}

	return claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		System:           strings.Join(system, "\n\n"),
		Messages:         turns,
	}
}
