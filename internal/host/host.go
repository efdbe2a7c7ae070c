// Package host is the privileged side of the recorder: it enumerates
// capturable sources, asks where to save, writes the recorded bytes and
// reports runtime versions.
package host

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/alchemmist/lazy-rec/internal/recording"
	"github.com/alchemmist/lazy-rec/internal/version"
)

type Bridge interface {
	ListSources(ctx context.Context) ([]recording.RawSource, error)
	ChooseSaveDestination(ctx context.Context, defaultName string, exts []string) (string, error)
	WriteBytes(ctx context.Context, path string, payload []byte) error
	RuntimeVersions(ctx context.Context) Versions
}

type Versions struct {
	Host     string `json:"host" yaml:"host"`
	Engine   string `json:"engine" yaml:"engine"`
	Renderer string `json:"renderer" yaml:"renderer"`
}

type Tools struct {
	FFmpeg  string
	Xrandr  string
	Wmctrl  string
	Pactl   string
	Display string
}

func DefaultTools() Tools {
	display := os.Getenv("DISPLAY")
	if display == "" {
		display = ":0"
	}
	return Tools{
		FFmpeg:  "ffmpeg",
		Xrandr:  "xrandr",
		Wmctrl:  "wmctrl",
		Pactl:   "pactl",
		Display: display,
	}
}

// Local talks to the X server and the filesystem of the machine it runs on.
type Local struct {
	tools      Tools
	thumbnails bool
	logger     *slog.Logger

	mu       sync.Mutex
	prompter Prompter
}

type Option func(*Local)

func WithThumbnails(on bool) Option {
	return func(l *Local) { l.thumbnails = on }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

func NewLocal(tools Tools, prompter Prompter, opts ...Option) *Local {
	def := DefaultTools()
	if strings.TrimSpace(tools.FFmpeg) == "" {
		tools.FFmpeg = def.FFmpeg
	}
	if strings.TrimSpace(tools.Xrandr) == "" {
		tools.Xrandr = def.Xrandr
	}
	if strings.TrimSpace(tools.Wmctrl) == "" {
		tools.Wmctrl = def.Wmctrl
	}
	if strings.TrimSpace(tools.Pactl) == "" {
		tools.Pactl = def.Pactl
	}
	if strings.TrimSpace(tools.Display) == "" {
		tools.Display = def.Display
	}
	l := &Local{tools: tools, prompter: prompter, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetPrompter swaps the save-destination prompter, e.g. once a UI is running.
func (l *Local) SetPrompter(p Prompter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompter = p
}

func (l *Local) ChooseSaveDestination(ctx context.Context, defaultName string, exts []string) (string, error) {
	l.mu.Lock()
	prompter := l.prompter
	l.mu.Unlock()
	if prompter == nil {
		return "", fmt.Errorf("no save prompter configured")
	}
	path, err := prompter.Prompt(ctx, defaultName, exts)
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if filepath.Ext(path) == "" && len(exts) > 0 && exts[0] != "*" {
		path += "." + exts[0]
	}
	return path, nil
}

func (l *Local) RuntimeVersions(ctx context.Context) Versions {
	v := Versions{
		Host:     version.Version,
		Engine:   runtime.Version(),
		Renderer: "unavailable",
	}
	out, err := l.output(ctx, l.tools.FFmpeg, "-version")
	if err != nil {
		l.logger.Debug("ffmpeg version probe failed", "error", err)
		return v
	}
	if lines := splitLines(out); len(lines) > 0 {
		v.Renderer = lines[0]
	}
	return v
}

func (l *Local) output(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+l.tools.Display)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w (%s)", filepath.Base(bin), strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func splitLines(in string) []string {
	s := bufio.NewScanner(strings.NewReader(in))
	out := make([]string, 0)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
