package recording

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryScreen Category = "screen"
	CategoryWindow Category = "window"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Qualities lists the quality tiers in ascending order.
var Qualities = []Quality{QualityLow, QualityMedium, QualityHigh}

// FrameRates lists the frame rates a recording may use.
var FrameRates = []int{15, 24, 30, 60}

func (q Quality) Valid() bool {
	for _, v := range Qualities {
		if q == v {
			return true
		}
	}
	return false
}

// Label is the human description shown by the settings editor.
func (q Quality) Label() string {
	switch q {
	case QualityLow:
		return "Low (720p)"
	case QualityMedium:
		return "Medium (1080p)"
	case QualityHigh:
		return "High (1440p)"
	default:
		return string(q)
	}
}

func ValidFrameRate(fps int) bool {
	for _, v := range FrameRates {
		if fps == v {
			return true
		}
	}
	return false
}

// RawSource is a capturable source as reported by the host, before categorisation.
type RawSource struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Thumbnail []byte `json:"thumbnail,omitempty" yaml:"-"`
}

type CaptureSource struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Thumbnail []byte   `json:"thumbnail,omitempty" yaml:"-"`
	Category  Category `json:"category" yaml:"category"`
}

// Classify tags a source by name. It is a heuristic: any name containing
// "screen" is treated as a screen.
func Classify(name string) Category {
	if strings.Contains(strings.ToLower(name), "screen") {
		return CategoryScreen
	}
	return CategoryWindow
}

type Settings struct {
	Quality      Quality `json:"quality" yaml:"quality" toml:"quality"`
	FPS          int     `json:"fps" yaml:"fps" toml:"fps"`
	IncludeAudio bool    `json:"include_audio" yaml:"include_audio" toml:"include_audio"`
	AudioDevice  string  `json:"audio_device,omitempty" yaml:"audio_device,omitempty" toml:"audio_device"`
}

func DefaultSettings() Settings {
	return Settings{
		Quality:      QualityHigh,
		FPS:          60,
		IncludeAudio: true,
	}
}

func (s Settings) Validate() error {
	if !s.Quality.Valid() {
		return fmt.Errorf("unknown quality %q", s.Quality)
	}
	if !ValidFrameRate(s.FPS) {
		return fmt.Errorf("unsupported frame rate %d (want one of %v)", s.FPS, FrameRates)
	}
	return nil
}

type Session struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	SourceID  string        `json:"source_id" yaml:"source_id"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time,omitempty"`
	Duration  time.Duration `json:"-" yaml:"-"`
	SavedPath string        `json:"saved_path,omitempty" yaml:"saved_path,omitempty"`
	Settings  Settings      `json:"settings" yaml:"settings"`
}

// Active reports whether the session has not been finalized yet.
func (s Session) Active() bool {
	return s.EndTime.IsZero()
}

func (s Session) DurationMs() int64 {
	return s.Duration.Milliseconds()
}

// FormatDuration renders d as mm:ss, or hh:mm:ss past the hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs / 60) % 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
