package chat

import "github.com/ryanhackme1207/Everspace/internal/presence"

// Client to server frames. Anything that fails to parse is dropped silently.

type inboundEnvelope struct {
	Type string `json:"type"`
}

type messageFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type passwordFrame struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type soundFrame struct {
	Type  string `json:"type"`
	Sound string `json:"sound"`
}

// Server to client frames.

type activeUsersOut struct {
	Type  string           `json:"type"`
	Users []presence.Entry `json:"users"`
}

type chatMessageOut struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp"`
	MessageID   int64  `json:"message_id"`
}

type userEventOut struct {
	Type        string `json:"type"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// noticeOut is terminal for its recipient: kicked or banned targets and every
// session of a deleted room.
type noticeOut struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type transferOut struct {
	Type     string `json:"type"`
	OldOwner string `json:"old_owner"`
	NewOwner string `json:"new_owner"`
	Message  string `json:"message"`
}

type soundOut struct {
	Type        string `json:"type"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Sound       string `json:"sound"`
}

type errorOut struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// passwordRequiredOut asks the client for the private room's password.
type passwordRequiredOut struct {
	Type string `json:"type"`
}

const timestampLayout = "2006-01-02 15:04:05"
