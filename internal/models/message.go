package models

// Message roles
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeAction = "action"
)

// ChatMessage is one archived chat entry. Messages are grouped on disk by the
// calendar day of their Timestamp.
type ChatMessage struct {
	ID          string      `json:"id"`
	Role        string      `json:"role"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name"`
	UserAvatar  string      `json:"user_avatar"`
	Content     string      `json:"content"`
	MessageType string      `json:"message_type"`
	File        *FileRecord `json:"file,omitempty"`
	Timestamp   int64       `json:"timestamp"` // unix ms
	Time        string      `json:"time"`      // HH:MM display time
}
