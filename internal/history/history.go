package history

import (
	"sync"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

// History is the in-memory log of finished sessions, newest first.
type History struct {
	mu       sync.Mutex
	sessions []recording.Session
}

func New() *History {
	return &History{}
}

func (h *History) Add(s recording.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions = append([]recording.Session{s}, h.sessions...)
}

// Delete removes the session with the given id and reports whether it existed.
func (h *History) Delete(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.sessions {
		if s.ID == id {
			h.sessions = append(h.sessions[:i:i], h.sessions[i+1:]...)
			return true
		}
	}
	return false
}

func (h *History) Get(id string) (recording.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return recording.Session{}, false
}

func (h *History) List() []recording.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]recording.Session, len(h.sessions))
	copy(out, h.sessions)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
