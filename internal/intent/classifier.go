// Package intent decides whether a recruiter turn should surface candidate
// cards. The decision is lexical and deterministic.
package intent

import (
	"strings"
	"unicode"
)

// Reason names the rule that produced a Decision.
type Reason string

const (
	ReasonConversational  Reason = "conversational_trigger"
	ReasonNoEvidence      Reason = "no_chunks"
	ReasonSearchTrigger   Reason = "search_trigger"
	ReasonRoleDescription Reason = "role_description"
	ReasonAmbiguous       Reason = "ambiguous"
)

// Decision is the classifier output for one turn.
type Decision struct {
	SurfaceCandidates bool
	Reason            Reason
	Matched           string
}

// Triggers holds the phrase sets consulted by the classifier. Phrases are
// lowercase and matched on word boundaries. ExactConversational phrases only
// match when they make up the whole question.
type Triggers struct {
	Conversational      []string
	ExactConversational []string
	Search              []string
	RoleDescription     []string
}

// DefaultTriggers returns the trigger sets used in production.
func DefaultTriggers() Triggers {
	return Triggers{
		Conversational: []string{
			// greetings
			"hello", "hi", "hey", "hiya", "greetings", "good morning", "good afternoon", "good evening",
			// thanks
			"thanks", "thank you", "thx", "cheers", "much appreciated",
			// farewells
			"bye", "goodbye", "see you", "see ya", "have a nice day",
			// meta questions about the assistant
			"who are you", "what are you", "what can you do", "how are you",
			"what is your name", "what's your name", "are you a bot", "how do you work",
		},
		ExactConversational: []string{
			"ok", "okay", "k", "got it", "cool", "great", "nice", "perfect", "sure",
			"yes", "no", "alright", "sounds good", "understood", "awesome", "fine",
		},
		Search: []string{
			// imperative search verbs
			"find", "search", "show me", "list", "recommend", "suggest", "looking for",
			"look for", "hire", "hiring", "shortlist", "match", "who has", "who knows",
			"candidate", "candidates", "profile", "profiles", "cv", "cvs", "resume", "resumes",
			// role names
			"developer", "engineer", "designer", "manager", "analyst", "scientist",
			"architect", "consultant", "specialist", "administrator", "devops", "tester",
			"intern", "lead", "programmer", "data scientist", "product owner", "scrum master",
			// skill keywords
			"python", "java", "javascript", "typescript", "react", "angular", "vue", "node",
			"golang", "rust", "kotlin", "swift", "sql", "aws", "azure", "gcp", "docker",
			"kubernetes", "terraform", "django", "flask", "fastapi", "spring", "machine learning",
			"pandas", "tensorflow", "pytorch", "sap", "salesforce",
		},
		RoleDescription: []string{
			"we need", "i need", "we are looking", "we're looking", "i am looking", "i'm looking",
			"someone who", "someone with", "somebody with", "a person who", "a person with",
			"experience in", "experience with", "years of experience", "background in",
			"familiar with", "skilled in", "knowledge of", "able to", "should have", "must have",
			"for a role", "for a position", "open position", "join our team",
		},
	}
}

// Classifier is a pure function over a fixed set of triggers.
type Classifier struct {
	conversational []phrase
	exact          map[string]struct{}
	search         []phrase
	roleDesc       []phrase
}

type phrase struct {
	text   string
	tokens []string
}

// New compiles the trigger sets.
func New(t Triggers) *Classifier {
	exact := make(map[string]struct{}, len(t.ExactConversational))
	for _, p := range t.ExactConversational {
		exact[strings.Join(tokenize(p), " ")] = struct{}{}
	}
	return &Classifier{
		conversational: compile(t.Conversational),
		exact:          exact,
		search:         compile(t.Search),
		roleDesc:       compile(t.RoleDescription),
	}
}

// Default returns a classifier using DefaultTriggers.
func Default() *Classifier {
	return New(DefaultTriggers())
}

// Decide applies the rules in order: conversational triggers always win, a turn
// without evidence never surfaces candidates, then search triggers and role
// descriptions surface them, and anything else stays conversational.
func (c *Classifier) Decide(question string, chunkCount int) Decision {
	tokens := tokenize(question)

	if _, ok := c.exact[strings.Join(tokens, " ")]; ok && len(tokens) > 0 {
		return Decision{Reason: ReasonConversational, Matched: strings.Join(tokens, " ")}
	}
	if p, ok := firstMatch(tokens, c.conversational); ok {
		return Decision{Reason: ReasonConversational, Matched: p}
	}
	if chunkCount <= 0 {
		return Decision{Reason: ReasonNoEvidence}
	}
	if p, ok := firstMatch(tokens, c.search); ok {
		return Decision{SurfaceCandidates: true, Reason: ReasonSearchTrigger, Matched: p}
	}
	if p, ok := firstMatch(tokens, c.roleDesc); ok {
		return Decision{SurfaceCandidates: true, Reason: ReasonRoleDescription, Matched: p}
	}
	return Decision{Reason: ReasonAmbiguous}
}

func compile(phrases []string) []phrase {
	out := make([]phrase, 0, len(phrases))
	for _, p := range phrases {
		tokens := tokenize(p)
		if len(tokens) == 0 {
			continue
		}
		out = append(out, phrase{text: p, tokens: tokens})
	}
	return out
}

func firstMatch(tokens []string, phrases []phrase) (string, bool) {
	for _, p := range phrases {
		if containsPhrase(tokens, p.tokens) {
			return p.text, true
		}
	}
	return "", false
}

// containsPhrase reports whether want occurs as a contiguous token run. A
// single-word phrase also matches its plural ("developers").
func containsPhrase(tokens, want []string) bool {
	if len(want) == 0 || len(want) > len(tokens) {
		return false
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		matched := true
		for j, w := range want {
			if !tokenEquals(tokens[i+j], w, len(want) == 1) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func tokenEquals(token, want string, allowPlural bool) bool {
	if token == want {
		return true
	}
	if !allowPlural {
		return false
	}
	return token == want+"s" || token == want+"es"
}

// tokenize lowercases s and splits it into words. Apostrophes stay inside words
// so that "what's" and "we're" survive as single tokens.
func tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "’", "'")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '+' && r != '#'
	})
}
