package models

// Inbound WebSocket message types.
const (
	EventSyncText       = "sync_text"
	EventPasteOnly      = "paste_only"
	EventSubmit         = "submit"
	EventReplaceLine    = "replace_line"
	EventGetClipboard   = "get_clipboard"
	EventGetCurrentLine = "get_current_line"
	EventGetFiles       = "get_files"
	EventDeleteFile     = "delete_file"
	EventGetChatHistory = "get_chat_history"
	EventClearChat      = "clear_chat"
	EventSettingsUpdate = "settings_update"
	EventKickUser       = "kick_user"
	EventAIReply        = "ai_reply"
	EventPing           = "ping"
)

// Outbound WebSocket message types.
const (
	EventUserIdentity     = "user_identity"
	EventChatHistory      = "chat_history"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventUserList         = "user_list"
	EventTextSynced       = "text_synced"
	EventPasteSuccess     = "paste_success"
	EventClipboardContent = "clipboard_content"
	EventCurrentLine      = "current_line"
	EventFileList         = "file_list"
	EventFileDeleted      = "file_deleted"
	EventChatCleared      = "chat_cleared"
	EventSettingsUpdated  = "settings_updated"
	EventUserKicked       = "user_kicked"
	EventNewMessage       = "new_message"
	EventAIResponse       = "ai_response"
	EventError            = "error"
	EventPong             = "pong"
)

// ClientEvent is the flat inbound envelope. Every message carries a type plus
// whichever payload fields that type uses; unknown fields are ignored.
type ClientEvent struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	Content        string `json:"content,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Category       string `json:"category,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	MaxConnections int    `json:"max_connections,omitempty"`
}
