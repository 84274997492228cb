package services

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vonxq/lan-bridge/internal/models"
	"github.com/vonxq/lan-bridge/internal/storage"
)

const (
	chatFilePrefix = "chat_"
	chatFileSuffix = ".json"
	chatDayFormat  = "2006-01-02"
)

// ChatService is the append-only, day-partitioned chat archive. Per-day
// volume is small, so appends rewrite the whole day file. Storage errors are
// logged and degrade to empty results; chat history is best-effort.
type ChatService struct {
	dir string
	mu  sync.Mutex
}

// NewChatService creates an archive rooted at dir.
func NewChatService(dir string) *ChatService {
	return &ChatService{dir: dir}
}

// Append stores msg in the current day partition, assigning id and
// timestamps. The stored message is returned even when the write fails.
func (s *ChatService) Append(msg models.ChatMessage) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	msg.ID = uuid.NewString()
	msg.Timestamp = now.UnixMilli()
	msg.Time = now.Format("15:04")

	path := s.dayPath(now)
	var msgs []models.ChatMessage
	if err := storage.ReadJSON(path, &msgs); err != nil && !os.IsNotExist(err) {
		log.Printf("chat: failed to read %s: %v", path, err)
	}
	msgs = append(msgs, msg)
	if err := storage.WriteJSON(path, msgs); err != nil {
		log.Printf("chat: failed to write %s: %v", path, err)
	}
	return msg
}

// Recent returns up to limit messages in chronological order, scanning day
// partitions newest-first.
func (s *ChatService) Recent(limit int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var collected []models.ChatMessage
	for _, path := range s.dayFilesNewestFirst() {
		var msgs []models.ChatMessage
		if err := storage.ReadJSON(path, &msgs); err != nil {
			log.Printf("chat: failed to read %s: %v", path, err)
			continue
		}
		// Prepend the whole day so order within a day is preserved.
		collected = append(msgs, collected...)
		if len(collected) >= limit {
			break
		}
	}
	if len(collected) > limit {
		collected = collected[len(collected)-limit:]
	}
	if collected == nil {
		collected = []models.ChatMessage{}
	}
	return collected
}

// PurgeToday deletes the current day partition outright.
func (s *ChatService) PurgeToday() {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.dayPath(time.Now())
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("chat: failed to remove %s: %v", path, err)
	}
}

// PurgeUser removes every message by userID across all day partitions,
// deleting partitions that become empty. Returns the number purged.
func (s *ChatService) PurgeUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for _, path := range s.dayFilesNewestFirst() {
		var msgs []models.ChatMessage
		if err := storage.ReadJSON(path, &msgs); err != nil {
			log.Printf("chat: failed to read %s: %v", path, err)
			continue
		}
		kept := msgs[:0]
		for _, m := range msgs {
			if m.UserID == userID {
				purged++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == len(msgs) {
			continue
		}
		if len(kept) == 0 {
			if err := os.Remove(path); err != nil {
				log.Printf("chat: failed to remove %s: %v", path, err)
			}
			continue
		}
		if err := storage.WriteJSON(path, kept); err != nil {
			log.Printf("chat: failed to write %s: %v", path, err)
		}
	}
	return purged
}

func (s *ChatService) dayPath(t time.Time) string {
	return filepath.Join(s.dir, chatFilePrefix+t.Format(chatDayFormat)+chatFileSuffix)
}

func (s *ChatService) dayFilesNewestFirst() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("chat: failed to list %s: %v", s.dir, err)
		return nil
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, chatFilePrefix) || !strings.HasSuffix(name, chatFileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	// Day stamps sort lexicographically, newest last; reverse for newest-first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths
}
