package recorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

type State int

const (
	Idle State = iota
	// Starting and Stopping are transient: a capture acquisition or a
	// stop/save/write sequence is in flight and every other command is rejected.
	Starting
	Recording
	Paused
	Stopping
)

var stateNames = [...]string{
	Idle:      "idle",
	Starting:  "starting",
	Recording: "recording",
	Paused:    "paused",
	Stopping:  "stopping",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", string(b))
}

// Busy reports whether a session occupies the active slot.
func (s State) Busy() bool {
	return s != Idle
}

// Status is a point-in-time snapshot of the controller for presentation.
type Status struct {
	State    State
	Armed    bool
	Selected *recording.CaptureSource
	Active   *recording.Session
	// Duration is the displayed duration of the active session. It never
	// decreases while a session is active and excludes paused spans.
	Duration      time.Duration
	Chunks        int
	BufferedBytes int
}

// Result is the outcome of a completed Stop. An empty Path means the save
// prompt was cancelled and the session was discarded.
type Result struct {
	Session recording.Session
	Path    string
}

type Trigger string

const (
	TriggerNew         Trigger = "new"
	TriggerStart       Trigger = "start"
	TriggerStop        Trigger = "stop"
	TriggerTogglePause Trigger = "toggle-pause"
)

var Triggers = []Trigger{TriggerNew, TriggerStart, TriggerStop, TriggerTogglePause}

// ParseTrigger accepts the short names and the menu-style aliases
// ("new-recording", "start-recording", "stop-recording").
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "new-recording", "refresh":
		return TriggerNew, nil
	case "start", "start-recording":
		return TriggerStart, nil
	case "stop", "stop-recording":
		return TriggerStop, nil
	case "toggle-pause", "toggle", "pause":
		return TriggerTogglePause, nil
	default:
		return "", fmt.Errorf("unknown trigger %q", s)
	}
}
