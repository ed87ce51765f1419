package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"hirepal/internal/domain"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.2
)

// contentGenerator is satisfied by genai.Client.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// StatusError exposes the HTTP status of a failed Gemini call.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// Client generates structured HirePal answers with Gemini.
type Client struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewFromAPIKey builds a Client for the Gemini API backend.
func NewFromAPIKey(ctx context.Context, apiKey, model string, temperature float64) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return New(gc.Models, model, temperature)
}

func New(models contentGenerator, model string, temperature float64) (*Client, error) {
	if models == nil {
		return nil, errors.New("gemini: generator must not be nil")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if temperature < 0 {
		temperature = defaultTemperature
	}
	return &Client{models: models, model: model, temperature: float32(temperature)}, nil
}

func (c *Client) Model() string { return c.model }

// Chat converts the conversation into Gemini contents. System messages become
// the system instruction; assistant turns use the "model" role.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		var role string
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, text)
			continue
		case domain.RoleUser:
			role = genai.RoleUser
		case domain.RoleAssistant:
			role = genai.RoleModel
		default:
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}})
	}
	if len(contents) == 0 {
		return "", errors.New("gemini: no conversation contents")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   answerSchema(),
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", wrapAPIError(err)
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		// Only the first candidate is requested.
		break
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini: response had no text")
	}
	return out, nil
}

func answerSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"reply": {Type: genai.TypeString},
			"candidates": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":             {Type: genai.TypeString},
						"relevant_content": {Type: genai.TypeString},
						"cv_link":          {Type: genai.TypeString},
					},
					Required: []string{"name", "relevant_content", "cv_link"},
				},
			},
		},
		Required:         []string{"reply", "candidates"},
		PropertyOrdering: []string{"reply", "candidates"},
	}
}

func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &StatusError{StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code > 0 {
		return &StatusError{StatusCode: apiErrPtr.Code, Err: err}
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}
