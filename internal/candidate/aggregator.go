// Package candidate collapses retrieved CV chunks into unique candidate
// identities.
package candidate

import (
	"strings"

	"hirepal/internal/domain"
)

const (
	DefaultMaxDisplay   = 5
	DefaultMaxSkills    = 5
	DefaultExcerptChars = 500
	DefaultExtension    = ".pdf"
	DefaultCVBaseURL    = "https://storage.googleapis.com/cv-rag-west-4/"

	truncationMarker = "..."
	excerptJoiner    = " ... "
	maxEvidenceChars = 4000
)

// Options configures an Aggregator. Zero values fall back to the defaults.
type Options struct {
	MaxDisplay      int
	MaxSkills       int
	ExcerptChars    int
	SourceExtension string
	CVBaseURL       string
	Skills          []Skill
}

// Aggregator turns chunks into a capped, deduplicated candidate list.
type Aggregator struct {
	opts Options
}

// NewAggregator applies defaults to opts.
func NewAggregator(opts Options) *Aggregator {
	if opts.MaxDisplay <= 0 {
		opts.MaxDisplay = DefaultMaxDisplay
	}
	if opts.MaxSkills <= 0 {
		opts.MaxSkills = DefaultMaxSkills
	}
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = DefaultExcerptChars
	}
	if opts.SourceExtension == "" {
		opts.SourceExtension = DefaultExtension
	}
	if opts.CVBaseURL == "" {
		opts.CVBaseURL = DefaultCVBaseURL
	}
	if len(opts.Skills) == 0 {
		opts.Skills = DefaultSkills
	}
	return &Aggregator{opts: opts}
}

// ExcerptChars is the rune budget for a candidate's relevant content.
func (a *Aggregator) ExcerptChars() int { return a.opts.ExcerptChars }

type group struct {
	key      string
	filename string
	contents []string
}

// Build groups chunks by identity key in order of first appearance, then
// synthesizes one Candidate per group. Chunks from files without the source
// extension are ignored. The result never holds more than MaxDisplay entries.
func (a *Aggregator) Build(chunks []domain.RetrievedChunk) []domain.Candidate {
	var order []*group
	byKey := make(map[string]*group)
	for _, ch := range chunks {
		if !HasExtension(ch.SourceFilename, a.opts.SourceExtension) {
			continue
		}
		key := IdentityKey(ch.SourceFilename)
		if key == "" {
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, filename: strings.TrimSpace(ch.SourceFilename)}
			byKey[key] = g
			order = append(order, g)
		}
		if c := normalizeSpace(ch.Content); c != "" && !contains(g.contents, c) {
			g.contents = append(g.contents, c)
		}
	}

	if len(order) > a.opts.MaxDisplay {
		order = order[:a.opts.MaxDisplay]
	}

	out := make([]domain.Candidate, 0, len(order))
	for _, g := range order {
		combined := strings.Join(g.contents, excerptJoiner)
		out = append(out, domain.Candidate{
			IdentityKey:     g.key,
			DisplayName:     DisplayName(g.key),
			SourceFilename:  g.filename,
			RelevantContent: Truncate(combined, a.opts.ExcerptChars),
			Evidence:        Truncate(strings.Join(g.contents, "\n"), maxEvidenceChars),
			Skills:          ExtractSkills(combined, a.opts.Skills, a.opts.MaxSkills),
			CVLink:          CVLink(a.opts.CVBaseURL, g.filename),
		})
	}
	return out
}

// Truncate cuts s to limit runes and appends a marker when anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + truncationMarker
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
