package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

var ErrInvalidSettings = errors.New("invalid recording settings")

// Update is a partial settings change; nil fields are left alone.
type Update struct {
	Quality      *recording.Quality
	FPS          *int
	IncludeAudio *bool
	AudioDevice  *string
}

type Store struct {
	mu       sync.Mutex
	current  recording.Settings
	defaults recording.Settings
}

func New(defaults recording.Settings) *Store {
	if err := defaults.Validate(); err != nil {
		defaults = recording.DefaultSettings()
	}
	return &Store{current: defaults, defaults: defaults}
}

func (s *Store) Current() recording.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) Defaults() recording.Settings {
	return s.defaults
}

// Apply merges u into the current settings. An invalid update changes nothing.
func (s *Store) Apply(u Update) (recording.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if u.Quality != nil {
		next.Quality = *u.Quality
	}
	if u.FPS != nil {
		next.FPS = *u.FPS
	}
	if u.IncludeAudio != nil {
		next.IncludeAudio = *u.IncludeAudio
	}
	if u.AudioDevice != nil {
		next.AudioDevice = *u.AudioDevice
	}
	if err := next.Validate(); err != nil {
		return s.current, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.current = next
	return next, nil
}

// Replace applies every field of next.
func (s *Store) Replace(next recording.Settings) (recording.Settings, error) {
	return s.Apply(Update{
		Quality:      &next.Quality,
		FPS:          &next.FPS,
		IncludeAudio: &next.IncludeAudio,
		AudioDevice:  &next.AudioDevice,
	})
}

func (s *Store) Reset() recording.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.defaults
	return s.current
}
