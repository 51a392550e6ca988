package domain

// Chat roles understood by the reply generator.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of a prompt sent to the reply generator.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
