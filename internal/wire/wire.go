// Package wire defines the JSON contract shared by every transport and the
// projection of pipeline answers onto it.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hirepal/internal/candidate"
	"hirepal/internal/domain"
	"hirepal/internal/usecase"
)

const (
	TypeText       = "text"
	TypeCandidates = "candidates"
	TypeError      = "error"

	NewSessionMessage = "New session created."

	// RenderFailureMessage replaces answers that fail Validate.
	RenderFailureMessage = "Sorry, I couldn't prepare that answer. Please try again."
)

type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type NewSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorBody is returned with non-2xx statuses.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CandidateCard is the UI projection of a domain.Candidate.
type CandidateCard struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Skills     []string `json:"skills"`
	Location   string   `json:"location"`
	Experience string   `json:"experience"`
	CVURL      string   `json:"cvUrl"`
	Initials   string   `json:"initials"`
	Text       string   `json:"text"`
}

// Response is the discriminated answer union. Content is a string for text and
// error responses and a []CandidateCard for candidates.
type Response struct {
	Type        string `json:"type"`
	Content     any    `json:"content"`
	LLMResponse string `json:"llmResponse,omitempty"`
}

// FromAnswer projects a pipeline answer onto the wire contract. A candidate
// answer without candidates is sent as text.
func FromAnswer(a domain.Answer) Response {
	switch a.Kind {
	case domain.AnswerCandidates:
		if len(a.Candidates) == 0 {
			return Response{Type: TypeText, Content: a.Reply}
		}
		cards := make([]CandidateCard, 0, len(a.Candidates))
		ids := make(map[string]int, len(a.Candidates))
		for _, c := range a.Candidates {
			card := Card(c)
			// Identity keys are case sensitive, slugs are not.
			if n := ids[card.ID]; n > 0 {
				ids[card.ID] = n + 1
				card.ID = fmt.Sprintf("%s-%d", card.ID, n+1)
			} else {
				ids[card.ID] = 1
			}
			cards = append(cards, card)
		}
		return Response{Type: TypeCandidates, Content: cards, LLMResponse: a.Reply}
	case domain.AnswerError:
		return Response{Type: TypeError, Content: a.Reply}
	default:
		return Response{Type: TypeText, Content: a.Reply}
	}
}

// uniqueID returns base, or base-N for the smallest N >= 2 not yet used, and
// marks the result as used. Identity keys are case sensitive, slugs are not.
func uniqueID(base string, used map[string]struct{}) string {
	id := base
	for n := 2; ; n++ {
		if _, taken := used[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	used[id] = struct{}{}
	return id
}

// Render projects a onto the wire contract and validates the result. When
// validation fails the returned response is an error answer that is always
// renderable, and the validation error is returned alongside it for logging.
func Render(a domain.Answer) (Response, error) {
	resp := FromAnswer(a)
	if err := resp.Validate(); err != nil {
		return FromAnswer(domain.ErrorAnswer(RenderFailureMessage)), err
	}
	return resp, nil
}

// Card derives the card fields from the candidate's evidence.
func Card(c domain.Candidate) CandidateCard {
	evidence := c.Evidence
	if strings.TrimSpace(evidence) == "" {
		evidence = c.RelevantContent
	}
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	return CandidateCard{
		ID:         candidate.Slug(c.DisplayName),
		Name:       c.DisplayName,
		Role:       candidate.Role(evidence),
		Skills:     skills,
		Location:   candidate.Location(evidence),
		Experience: candidate.Experience(evidence),
		CVURL:      c.CVLink,
		Initials:   candidate.Initials(c.DisplayName),
		Text:       c.RelevantContent,
	}
}

// Validate checks that r is renderable without content heuristics.
func (r Response) Validate() error {
	switch r.Type {
	case TypeText, TypeError:
		s, ok := r.Content.(string)
		if !ok {
			return fmt.Errorf("wire: %s content must be a string", r.Type)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("wire: %s content is empty", r.Type)
		}
		if r.LLMResponse != "" {
			return fmt.Errorf("wire: llmResponse is only allowed on candidates")
		}
	case TypeCandidates:
		cards, ok := r.Content.([]CandidateCard)
		if !ok {
			return errors.New("wire: candidates content must be a card list")
		}
		if len(cards) == 0 {
			return errors.New("wire: candidates content is empty")
		}
		if strings.TrimSpace(r.LLMResponse) == "" {
			return errors.New("wire: candidates response needs llmResponse")
		}
		seen := make(map[string]struct{}, len(cards))
		for i, c := range cards {
			if c.ID == "" || c.Name == "" || c.CVURL == "" {
				return fmt.Errorf("wire: card %d is missing id, name or cvUrl", i)
			}
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("wire: duplicate card id %q", c.ID)
			}
			seen[c.ID] = struct{}{}
		}
	default:
		return fmt.Errorf("wire: unknown response type %q", r.Type)
	}
	return nil
}

// Decode parses a response body, typing Content by the discriminant.
func Decode(data []byte) (Response, error) {
	var raw struct {
		Type        string          `json:"type"`
		Content     json.RawMessage `json:"content"`
		LLMResponse string          `json:"llmResponse"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Response{}, fmt.Errorf("wire: decode response: %w", err)
	}
	out := Response{Type: raw.Type, LLMResponse: raw.LLMResponse}
	switch raw.Type {
	case TypeCandidates:
		var cards []CandidateCard
		if err := json.Unmarshal(raw.Content, &cards); err != nil {
			return Response{}, fmt.Errorf("wire: decode cards: %w", err)
		}
		out.Content = cards
	case TypeText, TypeError:
		var s string
		if err := json.Unmarshal(raw.Content, &s); err != nil {
			return Response{}, fmt.Errorf("wire: decode %s content: %w", raw.Type, err)
		}
		out.Content = s
	default:
		return Response{}, fmt.Errorf("wire: unknown response type %q", raw.Type)
	}
	return out, out.Validate()
}

var invalidInputMessages = map[string]string{
	"missing_session_id": "session_id is required.",
	"empty_question":     "question must not be empty.",
	"question_too_long":  "question is too long.",
	"invalid_body":       "Request body must be JSON with session_id and question.",
}

// StatusFor maps a hard pipeline error to an HTTP status and body.
func StatusFor(err error) (int, ErrorBody) {
	var ue *usecase.Error
	if !errors.As(err, &ue) || ue == nil {
		return http.StatusInternalServerError, ErrorBody{Error: string(usecase.ErrorInternal), Message: "Internal server error."}
	}
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		msg, ok := invalidInputMessages[ue.Reason]
		if !ok {
			msg = "Invalid request."
		}
		return http.StatusBadRequest, ErrorBody{Error: string(ue.Code), Message: msg}
	case usecase.ErrorSessionNotFound:
		return http.StatusNotFound, ErrorBody{Error: string(ue.Code), Message: "Session not found."}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: string(usecase.ErrorInternal), Message: "Internal server error."}
	}
}

// InvalidBody is the error transports report for undecodable requests.
func InvalidBody(err error) error {
	return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
}
