package models

import "time"

// User represents a connected (or previously connected) device identity.
// Records are never deleted; a user that disconnects is marked offline and
// its identity is reused when the same device reconnects.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	Token        string    `json:"-"` // never serialized
	DeviceID     string    `json:"device_id,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	IsOnline     bool      `json:"is_online"`
}

// UserPublic is the wire shape of a user in user_list and user_joined events.
type UserPublic struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	ConnectedAt  int64  `json:"connected_at"`
	LastActiveAt int64  `json:"last_active_at"`
}

// Public converts a User to its broadcastable form (unix-ms timestamps).
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:           u.ID,
		Name:         u.Name,
		Avatar:       u.Avatar,
		ConnectedAt:  u.ConnectedAt.UnixMilli(),
		LastActiveAt: u.LastActiveAt.UnixMilli(),
	}
}
