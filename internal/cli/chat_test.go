package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hirepal/internal/domain"
	"hirepal/internal/usecase"
)

type chatStub struct {
	sessions  int
	ended     []string
	questions []usecase.AskInput
	answers   []domain.Answer
	err       error
}

func (s *chatStub) NewSession(context.Context) (string, error) {
	s.sessions++
	return "sess-" + string(rune('0'+s.sessions)), nil
}

func (s *chatStub) Ask(_ context.Context, in usecase.AskInput) (domain.Answer, error) {
	s.questions = append(s.questions, in)
	if s.err != nil {
		return domain.Answer{}, s.err
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *chatStub) EndSession(_ context.Context, id string) error {
	s.ended = append(s.ended, id)
	return nil
}

func lines(in ...string) func() (string, error) {
	return func() (string, error) {
		if len(in) == 0 {
			return "", io.EOF
		}
		l := in[0]
		in = in[1:]
		return l, nil
	}
}

func TestChatLoop_Conversation(t *testing.T) {
	svc := &chatStub{answers: []domain.Answer{
		domain.TextAnswer("Hi! Which role?"),
		domain.CandidateAnswer("Jane is a match.", []domain.Candidate{{
			IdentityKey:     "jane doe",
			DisplayName:     "Jane Doe",
			RelevantContent: "Senior Go engineer.",
			Evidence:        "Jane Doe. Senior Go engineer. Location: Porto.",
			Skills:          []string{"Go", "AWS"},
			CVLink:          "https://cv.example/jane_doe.pdf",
		}}),
	}}
	var out bytes.Buffer

	err := chatLoop(context.Background(), svc, lines("hello", "  ", "go engineers?", "/exit"), &out, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, []usecase.AskInput{
		{SessionID: "sess-1", Question: "hello"},
		{SessionID: "sess-1", Question: "go engineers?"},
	}, svc.questions)
	require.Equal(t, []string{"sess-1"}, svc.ended)

	text := out.String()
	require.Contains(t, text, usecase.Greeting)
	require.Contains(t, text, "HirePal: Hi! Which role?")
	require.Contains(t, text, "1. Jane Doe (Senior Go engineer)")
	require.Contains(t, text, "skills: Go, AWS")
	require.Contains(t, text, "location: Porto")
	require.Contains(t, text, "cv: https://cv.example/jane_doe.pdf")
}

func TestChatLoop_NewSessionCommand(t *testing.T) {
	svc := &chatStub{answers: []domain.Answer{domain.TextAnswer("ok")}}
	var out bytes.Buffer

	err := chatLoop(context.Background(), svc, lines("/new", "hi"), &out, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, svc.sessions)
	require.Equal(t, []usecase.AskInput{{SessionID: "sess-2", Question: "hi"}}, svc.questions)
	require.Equal(t, []string{"sess-1", "sess-2"}, svc.ended)
}

func TestChatLoop_InterruptAndHardErrors(t *testing.T) {
	svc := &chatStub{err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "question_too_long"}}
	var out bytes.Buffer
	calls := 0
	read := func() (string, error) {
		calls++
		if calls == 1 {
			return "way too long", nil
		}
		return "", promptui.ErrInterrupt
	}

	err := chatLoop(context.Background(), svc, read, &out, zap.NewNop())
	require.NoError(t, err)
	require.Contains(t, out.String(), "question is too long.")
}

func TestChatLoop_ErrorAnswer(t *testing.T) {
	svc := &chatStub{answers: []domain.Answer{domain.ErrorAnswer("Search is unavailable.")}}
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), svc, lines("anyone?"), &out, zap.NewNop()))
	require.Contains(t, out.String(), "HirePal (error): Search is unavailable.")
}
