package domain

// ChatMessage is the provider-agnostic chat message shape used by the pipeline
// and the response model integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
