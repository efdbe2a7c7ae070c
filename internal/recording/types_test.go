package recording

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{in: "Screen 1 (eDP-1)", want: CategoryScreen},
		{in: "Entire screen", want: CategoryScreen},
		{in: "Firefox", want: CategoryWindow},
		{in: "", want: CategoryWindow},
		{in: "screenshot tool", want: CategoryScreen},
	}

	for _, tt := range tests {
		if got := Classify(tt.in); got != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("default settings must be valid: %v", err)
	}
	bad := DefaultSettings()
	bad.FPS = 25
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for 25 fps")
	}
	bad = DefaultSettings()
	bad.Quality = "ultra"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown quality")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00"},
		{in: 8 * time.Second, want: "00:08"},
		{in: 61*time.Second + 900*time.Millisecond, want: "01:01"},
		{in: time.Hour + 2*time.Minute + 3*time.Second, want: "01:02:03"},
		{in: -time.Second, want: "00:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Fatalf("FormatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionActive(t *testing.T) {
	s := Session{StartTime: time.Now()}
	if !s.Active() {
		t.Fatal("session without end time must be active")
	}
	s.EndTime = s.StartTime.Add(time.Second)
	if s.Active() {
		t.Fatal("finalized session must not be active")
	}
}

func TestSessionEndTimeEncoding(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	active := Session{ID: "s1", StartTime: start}

	data, err := json.Marshal(active)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"end_time":"0001-01-01T00:00:00Z"`) {
		t.Fatalf("json always carries end_time, got %s", data)
	}

	out, err := yaml.Marshal(active)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if strings.Contains(string(out), "end_time") {
		t.Fatalf("active session should omit end_time in yaml:\n%s", out)
	}

	done := active
	done.EndTime = start.Add(8 * time.Second)
	if out, _ = yaml.Marshal(done); !strings.Contains(string(out), "end_time: 2026-03-14T09:27:01Z") {
		t.Fatalf("finished session should carry end_time:\n%s", out)
	}
}
