package candidate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	FallbackRole       = "Professional Candidate"
	FallbackLocation   = "See CV"
	FallbackExperience = "See CV"

	maxRoleChars = 120
)

var roleKeywords = []string{
	"developer", "engineer", "designer", "manager", "analyst",
	"specialist", "consultant", "architect", "lead", "senior",
	"junior", "frontend", "backend", "fullstack", "software", "scientist",
}

var (
	sentenceBreak = regexp.MustCompile(`[.!?\n]+\s*`)
	locationRe    = regexp.MustCompile(`(?i)\b(?:location|based in|address)\s*[:\-]?\s*([^\n|;•.]{2,60})`)
	experienceRe  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*\+?\s*(?:years|yrs)\b`)
)

// Role returns the first sentence of the evidence that mentions a role keyword.
func Role(evidence string) string {
	for _, sentence := range sentenceBreak.Split(evidence, -1) {
		lower := strings.ToLower(sentence)
		for _, kw := range roleKeywords {
			if strings.Contains(lower, kw) {
				return Truncate(strings.TrimSpace(sentence), maxRoleChars)
			}
		}
	}
	return FallbackRole
}

// Location extracts a "Location: ..." style hint from the evidence.
func Location(evidence string) string {
	m := locationRe.FindStringSubmatch(evidence)
	if len(m) < 2 {
		return FallbackLocation
	}
	loc := strings.TrimRight(strings.TrimSpace(m[1]), ".,")
	if loc == "" {
		return FallbackLocation
	}
	return loc
}

// Experience returns the largest "N years" mention in the evidence.
func Experience(evidence string) string {
	best := ""
	bestN := -1
	for _, m := range experienceRe.FindAllStringSubmatch(evidence, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > bestN {
			bestN = n
			best = m[1]
		}
	}
	if best == "" {
		return FallbackExperience
	}
	return best + "+ years"
}

// Initials returns the upper-cased first letters of the first two name words.
func Initials(name string) string {
	var out []rune
	for _, w := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

// Slug lowercases name and joins its words with hyphens.
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
