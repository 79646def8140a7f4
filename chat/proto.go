package chat

import (
	"net/http"
	"strings"

	"github.com/zjx20/gemini-relay/relay"
)

const ConversationIDHeader = "X-Conversation-ID"

type ChatReq struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Bind implements render.Binder.
func (req *ChatReq) Bind(r *http.Request) error {
	if req.ConversationID == "" {
		req.ConversationID = r.Header.Get(ConversationIDHeader)
	}
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if strings.TrimSpace(req.Message) == "" {
		return relay.ErrEmptyMessage
	}
	return nil
}

type ChatResp struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ErrResp struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
