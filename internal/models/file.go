package models

import "time"

// File categories, also the on-disk directory names under the uploads root.
const (
	CategoryImages = "images"
	CategoryVideos = "videos"
	CategoryFiles  = "files"
)

// FileRecord describes one stored upload. The set of records is derived from
// the directory listing on demand; nothing is cached in memory.
type FileRecord struct {
	Filename  string    `json:"filename"`
	Category  string    `json:"category"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}
