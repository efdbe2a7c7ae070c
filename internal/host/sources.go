package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/alchemmist/lazy-rec/internal/capture"
	"github.com/alchemmist/lazy-rec/internal/recording"
)

var (
	// " 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1"
	monitorLine = regexp.MustCompile(`^\s*\d+:\s+\S+\s+(\d+)/\d+x(\d+)/\d+\+(\d+)\+(\d+)\s+(\S+)\s*$`)
	// "0x03a00003  0 host Title with spaces"
	windowLine = regexp.MustCompile(`^(0x[0-9a-fA-F]+)\s+(-?\d+)\s+\S+\s*(.*)$`)
)

const thumbnailWidth = 320

func (l *Local) ListSources(ctx context.Context) ([]recording.RawSource, error) {
	screens, err := l.listScreens(ctx)
	if err != nil {
		return nil, err
	}
	windows, err := l.listWindows(ctx)
	if err != nil {
		l.logger.Warn("window enumeration unavailable, listing screens only", "error", err)
	}

	out := append(screens, windows...)
	if l.thumbnails {
		for i := range out {
			out[i].Thumbnail = l.thumbnail(ctx, out[i].ID)
		}
	}
	return out, nil
}

func (l *Local) listScreens(ctx context.Context) ([]recording.RawSource, error) {
	raw, err := l.output(ctx, l.tools.Xrandr, "--listmonitors")
	if err != nil {
		return nil, err
	}
	return parseMonitors(raw), nil
}

func (l *Local) listWindows(ctx context.Context) ([]recording.RawSource, error) {
	if _, err := exec.LookPath(l.tools.Wmctrl); err != nil {
		return nil, fmt.Errorf("wmctrl not found: %w", err)
	}
	raw, err := l.output(ctx, l.tools.Wmctrl, "-l")
	if err != nil {
		return nil, err
	}
	return parseWindows(raw), nil
}

func parseMonitors(raw string) []recording.RawSource {
	out := make([]recording.RawSource, 0)
	for _, line := range splitLines(raw) {
		m := monitorLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		x, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[4])
		out = append(out, recording.RawSource{
			ID:   capture.ScreenID(w, h, x, y),
			Name: fmt.Sprintf("Screen %d (%s)", len(out)+1, m[5]),
		})
	}
	return out
}

func parseWindows(raw string) []recording.RawSource {
	out := make([]recording.RawSource, 0)
	for _, line := range splitLines(raw) {
		m := windowLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// Desktop -1 holds panels, docks and the desktop itself.
		if m[2] == "-1" || m[3] == "" {
			continue
		}
		out = append(out, recording.RawSource{
			ID:   capture.WindowID(m[1]),
			Name: m[3],
		})
	}
	return out
}

// thumbnail grabs a single downscaled PNG frame. Failures yield no thumbnail.
func (l *Local) thumbnail(ctx context.Context, sourceID string) []byte {
	target, err := capture.ParseSourceID(sourceID)
	if err != nil {
		return nil
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "x11grab"}
	input := l.tools.Display
	switch target.Kind {
	case recording.CategoryScreen:
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", target.Width, target.Height))
		input = fmt.Sprintf("%s+%d,%d", l.tools.Display, target.X, target.Y)
	case recording.CategoryWindow:
		args = append(args, "-window_id", target.Window)
	}
	args = append(args,
		"-i", input,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", thumbnailWidth),
		"-f", "image2", "-c:v", "png", "pipe:1",
	)

	cmd := exec.CommandContext(ctx, l.tools.FFmpeg, args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+l.tools.Display)
	png, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			l.logger.Debug("thumbnail capture failed", "source", sourceID, "stderr", string(exitErr.Stderr))
		} else {
			l.logger.Debug("thumbnail capture failed", "source", sourceID, "error", err)
		}
		return nil
	}
	return png
}
