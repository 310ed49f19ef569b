package domain

const ChannelWeb = "web"

type ChatRequest struct {
	Message   string `json:"message"`
	UserID    *int64 `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Channel   string `json:"channel"`
}

type ChatReply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id,omitempty"`
}
