package domain

// AnswerKind discriminates the Answer variants.
type AnswerKind string

const (
	AnswerText       AnswerKind = "text"
	AnswerCandidates AnswerKind = "candidates"
	AnswerError      AnswerKind = "error"
)

// Answer is the result of one pipeline run. Candidates is only populated for
// AnswerCandidates; AnswerError is a conversational reply produced by a
// recovered failure.
type Answer struct {
	Kind       AnswerKind
	Reply      string
	Candidates []Candidate
}

// TextAnswer returns a conversational answer.
func TextAnswer(reply string) Answer {
	return Answer{Kind: AnswerText, Reply: reply}
}

// CandidateAnswer returns a candidate list answer.
func CandidateAnswer(reply string, candidates []Candidate) Answer {
	return Answer{Kind: AnswerCandidates, Reply: reply, Candidates: candidates}
}

// ErrorAnswer returns a conversational answer carrying a user-safe failure message.
func ErrorAnswer(message string) Answer {
	return Answer{Kind: AnswerError, Reply: message}
}
