// Chat message roles and finish reasons (OpenAI-compatible)
package models

// Message roles (OpenAI standard)
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Finish reasons (OpenAI standard)
const (
	FinishReasonStop          = "stop"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonFunctionCall  = "function_call"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

// ActiveMessage is one live in-memory conversation turn as exposed by the
// diagnostics API.
type ActiveMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ToolName string `json:"tool_name,omitempty"`
}
