package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hirepal/internal/domain"
)

func TestBuildPromptMessages_Order(t *testing.T) {
	msgs := buildPromptMessages(promptInput{
		question: "who knows Go?",
		history: []domain.Turn{
			{Role: domain.RoleUser, Text: "hi"},
			{Role: domain.RoleAssistant, Text: `{"reply":"hello","candidates":[]}`},
			{Role: "tool", Text: "ignored"},
			{Role: domain.RoleUser, Text: "   "},
		},
		chunks: []domain.RetrievedChunk{
			{Content: "Go developer", SourceFilename: "jane_doe.pdf"},
			{Content: strings.Repeat("x", 50), SourceFilename: "john_smith.pdf"},
		},
		candidates: []domain.Candidate{
			{DisplayName: "Jane Doe", CVLink: "https://cv.example/jane_doe.pdf", Skills: []string{"Go"}},
		},
		surface:      true,
		contextChars: 10,
	})

	require.Len(t, msgs, 5)
	require.Equal(t, domain.RoleSystem, msgs[0].Role)
	require.Contains(t, msgs[0].Content, "Output Contract:")
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}, msgs[1])
	require.Equal(t, domain.RoleAssistant, msgs[2].Role)

	ctx := msgs[3].Content
	require.Equal(t, domain.RoleSystem, msgs[3].Role)
	require.Contains(t, ctx, "[1] Go develop\n(source: jane_doe.pdf)")
	require.Contains(t, ctx, "\n\n---\n\n[2] xxxxxxxxxx\n(source: john_smith.pdf)")
	require.Contains(t, ctx, "- name: Jane Doe | cv_link: https://cv.example/jane_doe.pdf | skills: Go")

	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "who knows Go?"}, msgs[4])
}

func TestBuildContextPrompt_NoEvidence(t *testing.T) {
	ctx := buildContextPrompt(promptInput{surface: false})
	require.Contains(t, ctx, "(no matching CV content was found)")
	require.Contains(t, ctx, "(none for this turn; answer conversationally and return an empty candidates array)")
}

func TestParseModelAnswer(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		reply string
		ok    bool
	}{
		{name: "plain", raw: `{"reply":" hi ","candidates":[]}`, reply: "hi", ok: true},
		{name: "fenced", raw: "```json\n{\"reply\":\"hi\"}\n```", reply: "hi", ok: true},
		{name: "bare fence", raw: "```\n{\"reply\":\"hi\"}```", reply: "hi", ok: true},
		{name: "unknown field", raw: `{"reply":"hi","score":1}`},
		{name: "two values", raw: `{"reply":"a"}{"reply":"b"}`},
		{name: "trailing text", raw: `{"reply":"a"} thanks`},
		{name: "empty reply", raw: `{"reply":"  "}`},
		{name: "prose", raw: `Sure! Here are the candidates.`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := parseModelAnswer(tc.raw)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.reply, out.Reply)
		})
	}
}

func TestEncodeAssistantTurn(t *testing.T) {
	s, err := encodeAssistantTurn(domain.TextAnswer("hello"))
	require.NoError(t, err)
	require.JSONEq(t, `{"reply":"hello","candidates":[]}`, s)

	s, err = encodeAssistantTurn(domain.CandidateAnswer("one", []domain.Candidate{{
		DisplayName: "Jane Doe", RelevantContent: "Go", CVLink: "https://cv.example/jane_doe.pdf", Skills: []string{"Go"},
	}}))
	require.NoError(t, err)
	require.JSONEq(t, `{"reply":"one","candidates":[{"name":"Jane Doe","relevant_content":"Go","cv_link":"https://cv.example/jane_doe.pdf"}]}`, s)
}

func TestReconcile(t *testing.T) {
	derived := []domain.Candidate{
		{IdentityKey: "jane doe", DisplayName: "Jane Doe", SourceFilename: "jane_doe.pdf", RelevantContent: "raw jane", CVLink: "https://cv.example/jane_doe.pdf", Skills: []string{"Python"}},
		{IdentityKey: "John Smith", DisplayName: "John Smith", SourceFilename: "cvs/John Smith.pdf", RelevantContent: "raw john", CVLink: "https://cv.example/John%20Smith.pdf"},
	}
	model := []modelCandidate{
		{Name: "John", RelevantContent: "by link", CVLink: "https://elsewhere.example/john%20smith.PDF?x=1"},
		{Name: "JANE-DOE", RelevantContent: strings.Repeat("a", 40), CVLink: "https://made.up/link.pdf"},
		{Name: "Ghost Person", RelevantContent: "invented", CVLink: "https://cv.example/ghost.pdf"},
	}

	out, unmatched := reconcile(derived, model, 20)
	require.Equal(t, 1, unmatched)
	require.Len(t, out, 2)

	require.Equal(t, "Jane Doe", out[0].DisplayName)
	require.Equal(t, strings.Repeat("a", 20)+"...", out[0].RelevantContent)
	require.Equal(t, "https://cv.example/jane_doe.pdf", out[0].CVLink)
	require.Equal(t, []string{"Python"}, out[0].Skills)

	require.Equal(t, "by link", out[1].RelevantContent)
	require.Equal(t, "https://cv.example/John%20Smith.pdf", out[1].CVLink)

	require.Equal(t, "raw jane", derived[0].RelevantContent)
}

func TestReconcile_EachDerivedMatchedOnce(t *testing.T) {
	derived := []domain.Candidate{{IdentityKey: "jane doe", DisplayName: "Jane Doe", SourceFilename: "jane_doe.pdf", RelevantContent: "raw"}}
	model := []modelCandidate{
		{Name: "Jane Doe", RelevantContent: "first"},
		{Name: "Jane Doe", RelevantContent: "second"},
	}
	out, unmatched := reconcile(derived, model, 100)
	require.Equal(t, 1, unmatched)
	require.Equal(t, "first", out[0].RelevantContent)
}

func TestLinkFilename(t *testing.T) {
	require.Equal(t, "jane_doe.pdf", linkFilename("https://cv.example/a/jane_doe.pdf"))
	require.Equal(t, "John Smith.pdf", linkFilename("https://cv.example/John%20Smith.pdf#page=2"))
	require.Equal(t, "x.pdf", linkFilename(" x.pdf/ "))
	require.Equal(t, "", linkFilename(""))
}
