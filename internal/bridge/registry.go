package bridge

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vonxq/lan-bridge/internal/models"
	"github.com/vonxq/lan-bridge/internal/storage"
)

// ErrMaxConnections is the admission-control refusal. Callers translate it
// into the dedicated close code so clients can show a specific message.
var ErrMaxConnections = errors.New("max connections reached")

const settingsFileName = "settings.json"

// Registry owns identity lifecycle and admission control for ordinary client
// connections. Console connections never touch it.
type Registry struct {
	mu       sync.RWMutex
	users    map[string]*models.User // userID -> record, never deleted
	settings models.Settings
	path     string
}

// NewRegistry loads persisted settings (or defaults) from dataDir.
func NewRegistry(dataDir string) *Registry {
	r := &Registry{
		users: make(map[string]*models.User),
		path:  filepath.Join(dataDir, settingsFileName),
		settings: models.Settings{
			MaxConnections: models.DefaultConnections,
		},
	}
	var persisted models.Settings
	if err := storage.ReadJSON(r.path, &persisted); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("registry: failed to read settings: %v", err)
		}
	} else {
		persisted.Clamp()
		r.settings = persisted
	}
	return r
}

// CanAdmit reports whether another client connection fits under the limit.
func (r *Registry) CanAdmit() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineCountLocked() < r.settings.MaxConnections
}

// Admit resolves the identity for a new client connection. A device whose
// user is already online is re-admitted without a capacity check: the router
// supersedes the old connection, so the slot count does not grow.
func (r *Registry) Admit(token, deviceID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if deviceID != "" {
		id := UserIDForDevice(deviceID)
		if u, ok := r.users[id]; ok {
			if !u.IsOnline && r.onlineCountLocked() >= r.settings.MaxConnections {
				return nil, ErrMaxConnections
			}
			// Name, avatar and ConnectedAt are reused as-is.
			u.Token = token
			u.IsOnline = true
			u.LastActiveAt = now
			return u, nil
		}
	}

	if r.onlineCountLocked() >= r.settings.MaxConnections {
		return nil, ErrMaxConnections
	}

	u := &models.User{
		Token:        token,
		DeviceID:     deviceID,
		ConnectedAt:  now,
		LastActiveAt: now,
		IsOnline:     true,
	}
	if deviceID != "" {
		u.ID = UserIDForDevice(deviceID)
		u.Name, u.Avatar = DeriveIdentity(deviceID)
	} else {
		u.ID = "conn_" + uuid.NewString()
		u.Name, u.Avatar = RandomIdentity()
	}
	r.users[u.ID] = u
	return u, nil
}

// Release marks the user offline and stamps activity. Idempotent: releasing
// an already-offline user is a no-op and returns nil.
func (r *Registry) Release(userID string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || !u.IsOnline {
		return nil
	}
	u.IsOnline = false
	u.LastActiveAt = time.Now()
	return u
}

// Touch updates LastActiveAt for presence display.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.LastActiveAt = time.Now()
	}
}

// Get returns a copy of the user record.
func (r *Registry) Get(userID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// OnlineUsers returns the broadcastable list of online users, oldest
// connection first. Console connections are not users and never appear here.
func (r *Registry) OnlineUsers() []models.UserPublic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := []models.UserPublic{}
	for _, u := range r.users {
		if u.IsOnline {
			list = append(list, u.Public())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ConnectedAt < list[j].ConnectedAt
	})
	return list
}

// MaxConnections returns the current admission limit.
func (r *Registry) MaxConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.MaxConnections
}

// SetMaxConnections clamps n to [1,10], persists it, and returns the applied
// value. Existing connections above a lowered ceiling are not evicted; the
// limit only affects future admissions.
func (r *Registry) SetMaxConnections(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings.MaxConnections = n
	r.settings.Clamp()
	if err := storage.WriteJSON(r.path, r.settings); err != nil {
		log.Printf("registry: failed to persist settings: %v", err)
	}
	return r.settings.MaxConnections
}

func (r *Registry) onlineCountLocked() int {
	count := 0
	for _, u := range r.users {
		if u.IsOnline {
			count++
		}
	}
	return count
}
