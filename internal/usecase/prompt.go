package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"hirepal/internal/candidate"
	"hirepal/internal/domain"
)

// Greeting is the first assistant message interactive clients show.
const Greeting = "Hello 👋 this is HirePal. I'm your Deloitte recruiting assistant. What role are you hiring for today?"

const contextSeparator = "\n\n---\n\n"

type modelCandidate struct {
	Name            string `json:"name"`
	RelevantContent string `json:"relevant_content"`
	CVLink          string `json:"cv_link"`
}

type modelAnswer struct {
	Reply      string           `json:"reply"`
	Candidates []modelCandidate `json:"candidates"`
}

type promptInput struct {
	question     string
	history      []domain.Turn
	chunks       []domain.RetrievedChunk
	candidates   []domain.Candidate
	surface      bool
	contextChars int
}

func buildPromptMessages(in promptInput) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPolicyPrompt()},
	}
	for _, t := range in.history {
		if m, ok := historyToPromptMessage(t); ok {
			messages = append(messages, m)
		}
	}
	messages = append(messages,
		domain.ChatMessage{Role: domain.RoleSystem, Content: buildContextPrompt(in)},
		domain.ChatMessage{Role: domain.RoleUser, Content: in.question},
	)
	return messages
}

func buildPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are HirePal, an assistant that helps recruiters analyze CVs and support the hiring process for Deloitte Innovation Hub.",
		"",
		"Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) If several context chunks refer to the same candidate, combine them into one entry. Each candidate appears once.",
		"2) Only answer questions about candidates, their CVs or the hiring process. Politely decline anything else and return no candidates.",
		"3) Never invent candidate data. Use only the CONTEXT and the HISTORY of this conversation.",
		"4) Use the HISTORY to answer follow-up questions about earlier results.",
		"5) When asked about years of experience, estimate it from the dates in the CVs.",
		"6) If nothing in the CONTEXT matches, say so in the reply and return no candidates.",
		"7) Only list candidates from the CANDIDATES section, using their exact name and cv_link.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys reply (string) and candidates (array of objects with keys name, relevant_content and cv_link). " +
		"reply is a helpful, conversational message for the recruiter. " +
		"relevant_content summarizes the candidate's background and skills relevant to the question. " +
		"When candidates must not be listed, return candidates as an empty array."
}

func buildContextPrompt(in promptInput) string {
	var b strings.Builder
	b.WriteString("CONTEXT:\n")
	if len(in.chunks) == 0 {
		b.WriteString("(no matching CV content was found)")
	} else {
		b.WriteString(formatContext(in.chunks, in.contextChars))
	}

	b.WriteString("\n\nCANDIDATES:\n")
	if !in.surface || len(in.candidates) == 0 {
		b.WriteString("(none for this turn; answer conversationally and return an empty candidates array)")
		return b.String()
	}
	for _, c := range in.candidates {
		fmt.Fprintf(&b, "- name: %s | cv_link: %s", c.DisplayName, c.CVLink)
		if len(c.Skills) > 0 {
			fmt.Fprintf(&b, " | skills: %s", strings.Join(c.Skills, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatContext renders chunks as numbered blocks with their source file.
func formatContext(chunks []domain.RetrievedChunk, limit int) string {
	blocks := make([]string, 0, len(chunks))
	for i, ch := range chunks {
		content := ch.Content
		if limit > 0 {
			if r := []rune(content); len(r) > limit {
				content = string(r[:limit])
			}
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n(source: %s)", i+1, content, ch.SourceFilename))
	}
	return strings.Join(blocks, contextSeparator)
}

func historyToPromptMessage(t domain.Turn) (domain.ChatMessage, bool) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return domain.ChatMessage{}, false
	}
	switch t.Role {
	case domain.RoleUser, domain.RoleAssistant:
		return domain.ChatMessage{Role: t.Role, Content: text}, true
	default:
		return domain.ChatMessage{}, false
	}
}

// parseModelAnswer decodes exactly one JSON object. Markdown code fences
// around the object are tolerated; anything else is rejected.
func parseModelAnswer(raw string) (modelAnswer, error) {
	var out modelAnswer
	dec := json.NewDecoder(bytes.NewBufferString(stripCodeFence(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return modelAnswer{}, fmt.Errorf("usecase: decode model answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return modelAnswer{}, errors.New("usecase: decode model answer: multiple JSON values")
		}
		return modelAnswer{}, fmt.Errorf("usecase: decode model answer trailing data: %w", err)
	}
	out.Reply = strings.TrimSpace(out.Reply)
	if out.Reply == "" {
		return modelAnswer{}, errors.New("usecase: model answer missing reply")
	}
	return out, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// encodeAssistantTurn serializes the final answer the way it is replayed to
// the model as history.
func encodeAssistantTurn(a domain.Answer) (string, error) {
	out := modelAnswer{Reply: a.Reply, Candidates: []modelCandidate{}}
	for _, c := range a.Candidates {
		out.Candidates = append(out.Candidates, modelCandidate{
			Name:            c.DisplayName,
			RelevantContent: c.RelevantContent,
			CVLink:          c.CVLink,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("usecase: encode assistant turn: %w", err)
	}
	return string(b), nil
}

// reconcile merges the model output into the aggregator's candidates. The
// aggregator list is authoritative for identity, links and skills; a matching
// model entry only replaces the relevant content summary. It returns the
// candidates and the number of model entries that matched nothing.
func reconcile(derived []domain.Candidate, model []modelCandidate, excerptChars int) ([]domain.Candidate, int) {
	out := make([]domain.Candidate, len(derived))
	copy(out, derived)

	unmatched := 0
	used := make([]bool, len(out))
	for _, mc := range model {
		idx := matchCandidate(out, used, mc)
		if idx < 0 {
			unmatched++
			continue
		}
		used[idx] = true
		if summary := strings.TrimSpace(mc.RelevantContent); summary != "" {
			out[idx].RelevantContent = candidate.Truncate(summary, excerptChars)
		}
	}
	return out, unmatched
}

func matchCandidate(cands []domain.Candidate, used []bool, mc modelCandidate) int {
	if file := linkFilename(mc.CVLink); file != "" {
		for i, c := range cands {
			if !used[i] && strings.EqualFold(file, path.Base(c.SourceFilename)) {
				return i
			}
		}
	}
	name := candidate.NameKey(mc.Name)
	if name == "" {
		return -1
	}
	for i, c := range cands {
		if !used[i] && name == candidate.NameKey(c.IdentityKey) {
			return i
		}
	}
	return -1
}

func linkFilename(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	link = strings.TrimRight(link, "/")
	if i := strings.LastIndexByte(link, '/'); i >= 0 {
		link = link[i+1:]
	}
	if unescaped, err := url.PathUnescape(link); err == nil {
		link = unescaped
	}
	return link
}
