package domain

// Role tags a PromptMessage for the upstream model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptMessage is the provider-agnostic chat message shape sent upstream.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the success body returned to the browser widget.
type ChatReply struct {
	Reply string `json:"reply"`
}

// ErrorReply is the body of every failed relay response.
type ErrorReply struct {
	Error string `json:"error"`
}
