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

// maxRecentThreads bounds Context.Recent.
const maxRecentThreads = 8

// ThreadRef names a thread the user opened before.
type ThreadRef struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title,omitempty"`
	OpenedAt time.Time `yaml:"opened_at"`
}

// Context is the state `skillchat open` resumes from.
type Context struct {
	ThreadID    string      `yaml:"thread,omitempty"`
	ThreadTitle string      `yaml:"thread_title,omitempty"`
	Recent      []ThreadRef `yaml:"recent,omitempty"`
	UpdatedAt   time.Time   `yaml:"updated_at,omitempty"`
}

// SetThread makes id the current thread and moves it to the front of Recent.
func (c *Context) SetThread(id, title string) {
	now := time.Now()
	c.ThreadID = id
	c.ThreadTitle = title
	c.UpdatedAt = now

	recent := make([]ThreadRef, 0, len(c.Recent)+1)
	recent = append(recent, ThreadRef{ID: id, Title: title, OpenedAt: now})
	for _, ref := range c.Recent {
		if ref.ID == id {
			continue
		}
		recent = append(recent, ref)
		if len(recent) == maxRecentThreads {
			break
		}
	}
	c.Recent = recent
}

// Lookup expands a thread id prefix against Recent. An exact match wins;
// otherwise the prefix must be unambiguous.
func (c *Context) Lookup(prefix string) (ThreadRef, bool) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ThreadRef{}, false
	}
	var found []ThreadRef
	for _, ref := range c.Recent {
		if ref.ID == prefix {
			return ref, true
		}
		if strings.HasPrefix(ref.ID, prefix) {
			found = append(found, ref)
		}
	}
	if len(found) != 1 {
		return ThreadRef{}, false
	}
	return found[0], true
}

// ContextStore reads and writes the context file.
type ContextStore struct {
	mu   sync.Mutex
	path string
}

// NewContextStore returns a store for path, defaulting to
// ~/.config/skillchat/context.yaml.
func NewContextStore(path string) *ContextStore {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".config", "skillchat", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Load returns the stored context, or an empty one when no file exists.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Context{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	current := &Context{}
	if err := yaml.Unmarshal(data, current); err != nil {
		return nil, fmt.Errorf("parse context %s: %w", s.path, err)
	}
	return current, nil
}

// Save replaces the context file. The write goes through a temp file in the
// same directory so a crash never leaves a truncated file behind.
func (s *ContextStore) Save(current *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".context-*.yaml")
	if err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write context: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	return nil
}

// Clear deletes the context file. A missing file is not an error.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove context: %w", err)
	}
	return nil
}
