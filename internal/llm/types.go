package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of the sequence sent to the generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains the parameters for a generation call. Zero
// values fall back to the provider's configured defaults.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// CompletionResponse contains the generated reply.
type CompletionResponse struct {
	Content      string
	Shape        ReplyShape
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
