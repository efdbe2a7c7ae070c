// Package capture drives the platform capture/encode primitive. A Feed is a
// live recording of one source that emits encoded media in time slices.
package capture

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrFeedStopped        = errors.New("feed already stopped")
	ErrFeedNotStarted     = errors.New("feed not started")
)

// DefaultSlice is the target interval between emitted chunks.
const DefaultSlice = time.Second

type Options struct {
	IncludeAudio bool
	FPS          int
	Quality      recording.Quality
	AudioDevice  string
}

func OptionsFrom(s recording.Settings) Options {
	return Options{
		IncludeAudio: s.IncludeAudio,
		FPS:          s.FPS,
		Quality:      s.Quality,
		AudioDevice:  s.AudioDevice,
	}
}

// ChunkFunc receives encoded data in arrival order. The slice is owned by the callee.
type ChunkFunc func(chunk []byte)

type Feed interface {
	Start(slice time.Duration, onChunk ChunkFunc) error
	Pause() error
	Resume() error
	// Stop ends the capture, delivers any remaining data through the chunk
	// callback and releases the underlying process.
	Stop() error
}

type Primitive interface {
	Acquire(ctx context.Context, sourceID string, opts Options) (Feed, error)
}

// Target is a parsed source id.
type Target struct {
	Kind   recording.Category
	Window string
	Width  int
	Height int
	X      int
	Y      int
}

var (
	screenGeom = regexp.MustCompile(`^(\d+)x(\d+)\+(\d+)\+(\d+)$`)
	windowID   = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
)

func ScreenID(w, h, x, y int) string {
	return fmt.Sprintf("screen:%dx%d+%d+%d", w, h, x, y)
}

func WindowID(id string) string {
	return "window:" + id
}

func ParseSourceID(id string) (Target, error) {
	kind, rest, ok := strings.Cut(strings.TrimSpace(id), ":")
	if !ok {
		return Target{}, fmt.Errorf("malformed source id %q", id)
	}
	switch recording.Category(kind) {
	case recording.CategoryScreen:
		m := screenGeom.FindStringSubmatch(rest)
		if m == nil {
			return Target{}, fmt.Errorf("malformed screen geometry %q", rest)
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		x, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[4])
		if w == 0 || h == 0 {
			return Target{}, fmt.Errorf("empty screen geometry %q", rest)
		}
		return Target{Kind: recording.CategoryScreen, Width: w, Height: h, X: x, Y: y}, nil
	case recording.CategoryWindow:
		if !windowID.MatchString(rest) {
			return Target{}, fmt.Errorf("malformed window id %q", rest)
		}
		return Target{Kind: recording.CategoryWindow, Window: rest}, nil
	default:
		return Target{}, fmt.Errorf("unknown source kind %q", kind)
	}
}
