package model

import "time"

// Chat roles. RoleModel is accepted on read as an alias for RoleAssistant.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleModel     = "model"
)

// ChatMessage is one entry of a conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsModel reports whether the message was produced by the AI backend.
func (m ChatMessage) IsModel() bool {
	return m.Role == RoleAssistant || m.Role == RoleModel
}

// UserMessage builds a user turn.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// ModelMessage builds a model turn.
func ModelMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// AnalysisRecord is the outcome of the first analysis of an ad. Analysis is
// set iff Success; Error is set iff !Success.
type AnalysisRecord struct {
	Success     bool          `json:"success"`
	Analysis    string        `json:"analysis,omitempty"`
	Error       string        `json:"error,omitempty"`
	Model       string        `json:"model"`
	AnalyzedAt  time.Time     `json:"analyzed_at"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

// FollowupResult is the outcome of one follow-up turn. ChatHistory is the
// full conversation after the turn, including failed attempts.
type FollowupResult struct {
	Success     bool          `json:"success"`
	Question    string        `json:"question"`
	Answer      string        `json:"answer,omitempty"`
	Error       string        `json:"error,omitempty"`
	Model       string        `json:"model"`
	AskedAt     time.Time     `json:"asked_at"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

// ChatRecord is the persisted conversation for an ad. CreatedAt is fixed at
// the first write and carried over by every later write.
type ChatRecord struct {
	AdID        string        `json:"ad_id"`
	Model       string        `json:"model"`
	ChatHistory []ChatMessage `json:"chat_history"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
}

// MergeChat applies a follow-up result onto the prior record for adID.
// With no prior record the result's timestamp becomes CreatedAt; otherwise
// CreatedAt is preserved and history, model, and LastUpdated are replaced.
func MergeChat(prior *ChatRecord, adID string, result FollowupResult) ChatRecord {
	history := make([]ChatMessage, len(result.ChatHistory))
	copy(history, result.ChatHistory)

	if prior == nil {
		return ChatRecord{
			AdID:        adID,
			Model:       result.Model,
			ChatHistory: history,
			CreatedAt:   result.AskedAt,
			LastUpdated: result.AskedAt,
		}
	}

	merged := *prior
	if merged.AdID == "" {
		merged.AdID = adID
	}
	if result.Model != "" {
		merged.Model = result.Model
	}
	merged.ChatHistory = history
	merged.LastUpdated = result.AskedAt
	return merged
}
