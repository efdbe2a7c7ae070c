// Package notify keeps the short-lived notifications shown on top of the UI.
package notify

import (
	"strconv"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	DefaultTTL   = 5 * time.Second
	DefaultLimit = 4
)

type Notification struct {
	ID      string
	Level   Level
	Title   string
	Message string
	Created time.Time
	TTL     time.Duration
}

func (n Notification) Expired(now time.Time) bool {
	return n.TTL > 0 && now.Sub(n.Created) >= n.TTL
}

// Stack holds at most Limit notifications, newest last. Errors stay twice as
// long as the other levels.
type Stack struct {
	mu    sync.Mutex
	items []Notification
	next  int
	ttl   time.Duration
	limit int
	now   func() time.Time
}

func NewStack(ttl time.Duration, limit int) *Stack {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{ttl: ttl, limit: limit, now: time.Now}
}

func (s *Stack) Push(level Level, title, message string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	ttl := s.ttl
	if level == LevelError {
		ttl *= 2
	}
	n := Notification{
		ID:      "n" + strconv.Itoa(s.next),
		Level:   level,
		Title:   title,
		Message: message,
		Created: s.now(),
		TTL:     ttl,
	}
	s.items = append(s.items, n)
	if len(s.items) > s.limit {
		s.items = append([]Notification(nil), s.items[len(s.items)-s.limit:]...)
	}
	return n.ID
}

func (s *Stack) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Active prunes expired entries and returns the rest.
func (s *Stack) Active(now time.Time) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	for _, n := range s.items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	s.items = kept
	out := make([]Notification, len(kept))
	copy(out, kept)
	return out
}

func (s *Stack) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}
