package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the persisted CLI context: the session saved by login and the
// room selected with `roomsync use`.
type Context struct {
	// ServerURL is the server the session belongs to.
	ServerURL string `yaml:"server,omitempty"`
	// UserID is the authenticated user id.
	UserID string `yaml:"user_id,omitempty"`
	// Username is the authenticated username.
	Username string `yaml:"username,omitempty"`
	// Token is the session token.
	Token string `yaml:"token,omitempty"`
	// RoomID is the currently selected room.
	RoomID string `yaml:"room,omitempty"`
	// RoomName is the human-readable room label (for display).
	RoomName string `yaml:"room_name,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no context is set.
func (c *Context) IsEmpty() bool {
	return !c.HasSession() && !c.HasRoom()
}

// HasSession returns true if saved credentials exist.
func (c *Context) HasSession() bool {
	return c.UserID != "" && c.Token != ""
}

// HasRoom returns true if a room is selected.
func (c *Context) HasRoom() bool {
	return c.RoomID != ""
}

// SetSession stores credentials. The selected room is dropped when the
// server changes since room ids are per server.
func (c *Context) SetSession(serverURL, userID, username, token string) {
	if c.ServerURL != "" && c.ServerURL != serverURL {
		c.RoomID = ""
		c.RoomName = ""
	}
	c.ServerURL = serverURL
	c.UserID = userID
	c.Username = username
	c.Token = token
	c.UpdatedAt = time.Now()
}

// ClearSession removes credentials and keeps the room selection.
func (c *Context) ClearSession() {
	c.UserID = ""
	c.Username = ""
	c.Token = ""
	c.UpdatedAt = time.Now()
}

// SetRoom sets the selected room.
func (c *Context) SetRoom(id, name string) {
	c.RoomID = id
	c.RoomName = name
	c.UpdatedAt = time.Now()
}

// Clear removes all context.
func (c *Context) Clear() {
	*c = Context{UpdatedAt: time.Now()}
}

// ApplyTo fills server and auth settings that the config left empty.
// Explicit config and env values win over the saved session.
func (c *Context) ApplyTo(cfg *Config) {
	if cfg == nil || !c.HasSession() {
		return
	}
	if cfg.Server.URL == "" {
		cfg.Server.URL = c.ServerURL
	}
	if cfg.Server.URL != c.ServerURL {
		return
	}
	if cfg.Auth.UserID == "" && cfg.Auth.Token == "" {
		cfg.Auth.UserID = c.UserID
		cfg.Auth.Token = c.Token
	}
	if cfg.Auth.Username == "" {
		cfg.Auth.Username = c.Username
	}
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no context set)"
	}
	var parts []string
	if c.HasSession() {
		user := c.Username
		if user == "" {
			user = shortID(c.UserID)
		}
		parts = append(parts, fmt.Sprintf("user:%s@%s", user, c.ServerURL))
	}
	if c.HasRoom() {
		name := c.RoomName
		if name == "" {
			name = shortID(c.RoomID)
		}
		parts = append(parts, fmt.Sprintf("room:%s", name))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses ConfigDir()/context.yaml.
func NewContextStore(path string) *ContextStore {
	if path == "" {
		path = filepath.Join(ConfigDir(), "context.yaml")
	}
	return &ContextStore{path: path}
}

// DefaultContextStore returns a context store using the default path.
func DefaultContextStore() *ContextStore {
	return NewContextStore("")
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk. The file holds a session token, so it is
// written owner-only.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
