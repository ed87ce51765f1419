package domain

// RetrievedChunk is a scored span of a source document returned by a
// document store. Score is a similarity: higher means more relevant.
type RetrievedChunk struct {
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
	SourceFilename string  `json:"source_filename"`
}

// Candidate is one deduplicated CV identity surfaced to the recruiter.
type Candidate struct {
	IdentityKey     string   `json:"identity_key"`
	DisplayName     string   `json:"display_name"`
	SourceFilename  string   `json:"source_filename"`
	RelevantContent string   `json:"relevant_content"`
	Evidence        string   `json:"-"`
	Skills          []string `json:"skills"`
	CVLink          string   `json:"cv_link"`
}
