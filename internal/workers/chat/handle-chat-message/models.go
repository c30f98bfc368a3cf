// internal/workers/chat/handle-chat-message/models.go
package handlechatmessage

import (
	"marketplace-chat/internal/chat"
	"marketplace-chat/internal/common/nlp"
)

type Input struct {
	SessionID string      `json:"sessionId"`
	UserID    string      `json:"userId"`
	Message   string      `json:"message"`
	NLP       *nlp.Result `json:"nlp,omitempty"`
}

type Output struct {
	Reply       string        `json:"reply"`
	Suggestions []string      `json:"suggestions"`
	Metadata    chat.Metadata `json:"metadata"`
	Found       bool          `json:"found"`
}
