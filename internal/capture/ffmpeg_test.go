package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

func writeFakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

type collector struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (c *collector) add(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, b)
}

func (c *collector) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	for _, ch := range c.chunks {
		sb.Write(ch)
	}
	return sb.String()
}

func TestParseSourceID(t *testing.T) {
	tgt, err := ParseSourceID("screen:1920x1080+2560+0")
	if err != nil {
		t.Fatalf("parse screen: %v", err)
	}
	if tgt.Kind != recording.CategoryScreen || tgt.Width != 1920 || tgt.Height != 1080 || tgt.X != 2560 || tgt.Y != 0 {
		t.Fatalf("unexpected screen target: %#v", tgt)
	}

	tgt, err = ParseSourceID("window:0x03a00003")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	if tgt.Kind != recording.CategoryWindow || tgt.Window != "0x03a00003" {
		t.Fatalf("unexpected window target: %#v", tgt)
	}

	for _, bad := range []string{"", "screen", "screen:wide", "screen:0x0+0+0", "window:42", "monitor:1"} {
		if _, err := ParseSourceID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestArgsScreenWithAudio(t *testing.T) {
	f := NewFFmpeg("ffmpeg", ":1")
	args := strings.Join(f.Args(Target{Kind: recording.CategoryScreen, Width: 1920, Height: 1080, X: 0, Y: 0}, Options{
		IncludeAudio: true,
		FPS:          24,
		Quality:      recording.QualityLow,
	}), " ")

	mustContain := []string{
		"-f x11grab -framerate 24",
		"-video_size 1920x1080",
		"-i :1+0,0",
		"-f pulse -i default",
		"scale=-2:'min(720,ih)'",
		"-c:a libopus",
		"-f webm pipe:1",
	}
	for _, needle := range mustContain {
		if !strings.Contains(args, needle) {
			t.Fatalf("expected args to contain %q, got:\n%s", needle, args)
		}
	}
}

func TestArgsWindowWithoutAudio(t *testing.T) {
	f := NewFFmpeg("", "")
	args := strings.Join(f.Args(Target{Kind: recording.CategoryWindow, Window: "0x1"}, Options{FPS: 60, Quality: recording.QualityHigh}), " ")
	if !strings.Contains(args, "-window_id 0x1") || !strings.Contains(args, "-i :0") {
		t.Fatalf("unexpected window args: %s", args)
	}
	if strings.Contains(args, "pulse") || strings.Contains(args, "libopus") {
		t.Fatalf("audio must be absent: %s", args)
	}
}

func TestAcquireInvalidSource(t *testing.T) {
	f := NewFFmpeg(writeFakeFFmpeg(t, "exit 0"), ":0")
	_, err := f.Acquire(context.Background(), "bogus", Options{FPS: 30})
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestAcquireMissingBinary(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "nope"), ":0")
	_, err := f.Acquire(context.Background(), "window:0x1", Options{FPS: 30})
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestAcquireProcessDiesDuringStartup(t *testing.T) {
	fake := writeFakeFFmpeg(t, `echo "Cannot open display :9, error 1." >&2
exit 1`)
	f := NewFFmpeg(fake, ":9")
	f.StartupGrace = 5 * time.Second

	_, err := f.Acquire(context.Background(), "window:0x1", Options{FPS: 30})
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "Cannot open display") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFeedDeliversAllDataInOrder(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ffmpeg.log")
	t.Setenv("FFMPEG_LOG", logPath)
	fake := writeFakeFFmpeg(t, `echo "$*" >> "$FFMPEG_LOG"
printf 'head-'
read line
printf 'tail'`)

	f := NewFFmpeg(fake, ":0")
	f.StartupGrace = 50 * time.Millisecond
	feed, err := f.Acquire(context.Background(), "screen:1280x720+0+0", Options{FPS: 15, Quality: recording.QualityMedium})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	var c collector
	if err := feed.Start(10*time.Millisecond, c.add); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := feed.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := c.joined(); got != "head-tail" {
		t.Fatalf("expected head-tail, got %q", got)
	}

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "-video_size 1280x720") {
		t.Fatalf("unexpected ffmpeg invocation: %s", b)
	}
}

func TestFeedPauseResumeThenStop(t *testing.T) {
	fake := writeFakeFFmpeg(t, `printf 'a'
read line
printf 'b'`)
	f := NewFFmpeg(fake, ":0")
	f.StartupGrace = 50 * time.Millisecond

	feed, err := f.Acquire(context.Background(), "window:0x2", Options{FPS: 30})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := feed.Pause(); !errors.Is(err, ErrFeedNotStarted) {
		t.Fatalf("expected ErrFeedNotStarted before start, got %v", err)
	}

	var c collector
	if err := feed.Start(time.Hour, c.add); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := feed.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := feed.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := feed.Pause(); err != nil {
		t.Fatalf("pause again: %v", err)
	}
	if err := feed.Stop(); err != nil {
		t.Fatalf("stop while paused: %v", err)
	}
	if got := c.joined(); got != "ab" {
		t.Fatalf("expected ab, got %q", got)
	}
	if err := feed.Resume(); !errors.Is(err, ErrFeedStopped) {
		t.Fatalf("expected ErrFeedStopped after stop, got %v", err)
	}
	if err := feed.Stop(); err != nil {
		t.Fatalf("second stop must be a no-op, got %v", err)
	}
}

func TestFeedStopKillsStuckProcess(t *testing.T) {
	fake := writeFakeFFmpeg(t, `trap '' INT
while true; do sleep 1; done`)
	f := NewFFmpeg(fake, ":0")
	f.StartupGrace = 50 * time.Millisecond
	f.StopTimeout = 100 * time.Millisecond

	feed, err := f.Acquire(context.Background(), "window:0x3", Options{FPS: 30})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := feed.Start(time.Hour, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := feed.Stop(); err == nil {
		t.Fatal("expected timeout error for a process that ignores q")
	}
}
