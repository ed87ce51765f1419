package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"hirepal/internal/domain"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func TestNew_Defaults(t *testing.T) {
	_, err := New(nil, "", 0)
	require.Error(t, err)

	c, err := New(&fakeGenerator{}, " ", -1)
	require.NoError(t, err)
	require.Equal(t, defaultModel, c.Model())
	require.InDelta(t, defaultTemperature, float64(c.temperature), 1e-6)
}

func TestChat_MapsConversation(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(
		&genai.Part{Text: "thinking", Thought: true},
		&genai.Part{Text: `{"reply":"ok",`},
		&genai.Part{Text: `"candidates":[]}`},
	)}
	c, err := New(gen, "gemini-2.5-flash", 0.2)
	require.NoError(t, err)

	out, err := c.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "rules"},
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: `{"reply":"hi","candidates":[]}`},
		{Role: domain.RoleUser, Content: "find a java developer"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"reply":"ok","candidates":[]}`, out)

	require.Equal(t, "gemini-2.5-flash", gen.model)
	require.Len(t, gen.contents, 3)
	require.Equal(t, string(genai.RoleUser), gen.contents[0].Role)
	require.Equal(t, string(genai.RoleModel), gen.contents[1].Role)
	require.Equal(t, "find a java developer", gen.contents[2].Parts[0].Text)

	require.NotNil(t, gen.config)
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Equal(t, "rules", gen.config.SystemInstruction.Parts[0].Text)
	require.InDelta(t, 0.2, float64(*gen.config.Temperature), 1e-6)
	require.Equal(t, []string{"reply", "candidates"}, gen.config.ResponseSchema.Required)
	require.Contains(t, gen.config.ResponseSchema.Properties["candidates"].Items.Properties, "cv_link")
}

func TestChat_NoSystemInstruction(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(&genai.Part{Text: "{}"})}
	c, err := New(gen, "", 0)
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}})
	require.NoError(t, err)
	require.Nil(t, gen.config.SystemInstruction)
}

func TestChat_Errors(t *testing.T) {
	user := []domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}}

	t.Run("no contents", func(t *testing.T) {
		c, _ := New(&fakeGenerator{}, "", 0)
		_, err := c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleSystem, Content: "s"}})
		require.ErrorContains(t, err, "no conversation contents")
	})

	t.Run("empty text", func(t *testing.T) {
		c, _ := New(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, "", 0)
		_, err := c.Chat(context.Background(), user)
		require.ErrorContains(t, err, "no text")
	})

	t.Run("plain error", func(t *testing.T) {
		c, _ := New(&fakeGenerator{err: errors.New("dial tcp")}, "", 0)
		_, err := c.Chat(context.Background(), user)
		require.ErrorContains(t, err, "dial tcp")
		var se *StatusError
		require.False(t, errors.As(err, &se))
	})

	t.Run("api error keeps status", func(t *testing.T) {
		apiErr := genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}
		c, _ := New(&fakeGenerator{err: fmt.Errorf("call: %w", apiErr)}, "", 0)
		_, err := c.Chat(context.Background(), user)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, http.StatusTooManyRequests, se.HTTPStatusCode())
	})
}
