package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

const stderrTail = 4 << 10

type preset struct {
	height  int
	crf     int
	bitrate string
}

var presets = map[recording.Quality]preset{
	recording.QualityLow:    {height: 720, crf: 36, bitrate: "1M"},
	recording.QualityMedium: {height: 1080, crf: 31, bitrate: "2M"},
	recording.QualityHigh:   {height: 1440, crf: 24, bitrate: "4M"},
}

// FFmpeg captures X11 screens and windows with ffmpeg's x11grab device and
// streams VP8/Opus WebM on stdout.
type FFmpeg struct {
	bin     string
	display string

	// StartupGrace is how long a fresh process must survive before the feed
	// counts as acquired.
	StartupGrace time.Duration
	StopTimeout  time.Duration
	Logger       *slog.Logger
}

func NewFFmpeg(bin, display string) *FFmpeg {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	if strings.TrimSpace(display) == "" {
		display = ":0"
	}
	return &FFmpeg{
		bin:          bin,
		display:      display,
		StartupGrace: 500 * time.Millisecond,
		StopTimeout:  10 * time.Second,
		Logger:       slog.Default(),
	}
}

func (f *FFmpeg) Args(t Target, opts Options) []string {
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "x11grab", "-framerate", strconv.Itoa(fps)}

	input := f.display
	switch t.Kind {
	case recording.CategoryScreen:
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", t.Width, t.Height))
		input = fmt.Sprintf("%s+%d,%d", f.display, t.X, t.Y)
	case recording.CategoryWindow:
		args = append(args, "-window_id", t.Window)
	}
	args = append(args, "-i", input)

	if opts.IncludeAudio {
		dev := strings.TrimSpace(opts.AudioDevice)
		if dev == "" {
			dev = "default"
		}
		args = append(args, "-f", "pulse", "-i", dev)
	}

	p, ok := presets[opts.Quality]
	if !ok {
		p = presets[recording.QualityHigh]
	}
	args = append(args,
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", p.height),
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-crf", strconv.Itoa(p.crf),
		"-b:v", p.bitrate,
	)
	if opts.IncludeAudio {
		args = append(args, "-c:a", "libopus", "-b:a", "128k")
	}
	return append(args, "-f", "webm", "pipe:1")
}

func (f *FFmpeg) Acquire(ctx context.Context, sourceID string, opts Options) (Feed, error) {
	target, err := ParseSourceID(sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	if _, err := exec.LookPath(f.bin); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found (%s)", ErrCaptureUnavailable, f.bin)
	}

	args := f.Args(target, opts)
	cmd := exec.Command(f.bin, args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+f.display)

	feed := &ffmpegFeed{
		cmd:         cmd,
		out:         &lockedBuffer{},
		stderr:      &tailBuffer{max: stderrTail},
		exited:      make(chan struct{}),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		stopTimeout: f.StopTimeout,
	}
	cmd.Stdout = feed.out
	cmd.Stderr = feed.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	feed.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrCaptureUnavailable, err)
	}
	go func() {
		feed.waitErr = cmd.Wait()
		close(feed.exited)
	}()

	f.logger().Debug("ffmpeg started", "pid", cmd.Process.Pid, "args", strings.Join(args, " "))

	grace := time.NewTimer(f.StartupGrace)
	defer grace.Stop()
	select {
	case <-feed.exited:
		msg := strings.TrimSpace(feed.stderr.String())
		if msg == "" && feed.waitErr != nil {
			msg = feed.waitErr.Error()
		}
		if msg == "" {
			msg = "process exited during startup"
		}
		return nil, fmt.Errorf("%w: %s", ErrCaptureUnavailable, msg)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-feed.exited
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, ctx.Err())
	case <-grace.C:
	}
	return feed, nil
}

func (f *FFmpeg) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

type ffmpegFeed struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	out         *lockedBuffer
	stderr      *tailBuffer
	stopTimeout time.Duration

	exited  chan struct{}
	waitErr error

	quit    chan struct{}
	done    chan struct{}
	onChunk ChunkFunc

	mu      sync.Mutex
	started bool
	paused  bool
	stopped bool
}

func (f *ffmpegFeed) Start(slice time.Duration, onChunk ChunkFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return ErrFeedStopped
	}
	if f.started {
		return errors.New("feed already started")
	}
	if slice <= 0 {
		slice = DefaultSlice
	}
	f.started = true
	f.onChunk = onChunk
	go f.run(slice)
	return nil
}

func (f *ffmpegFeed) run(slice time.Duration) {
	defer close(f.done)
	t := time.NewTicker(slice)
	defer t.Stop()
	for {
		select {
		case <-f.quit:
			return
		case <-t.C:
			f.flush()
		}
	}
}

func (f *ffmpegFeed) flush() {
	b := f.out.Take()
	if len(b) == 0 || f.onChunk == nil {
		return
	}
	f.onChunk(b)
}

func (f *ffmpegFeed) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return ErrFeedStopped
	}
	if !f.started {
		return ErrFeedNotStarted
	}
	if f.paused {
		return nil
	}
	if err := f.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("pause ffmpeg: %w", err)
	}
	f.paused = true
	return nil
}

func (f *ffmpegFeed) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return ErrFeedStopped
	}
	if !f.started {
		return ErrFeedNotStarted
	}
	if !f.paused {
		return nil
	}
	if err := f.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("resume ffmpeg: %w", err)
	}
	f.paused = false
	return nil
}

func (f *ffmpegFeed) Stop() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	paused := f.paused
	started := f.started
	f.mu.Unlock()

	if paused {
		_ = f.cmd.Process.Signal(syscall.SIGCONT)
	}
	// ffmpeg finalises the container when it reads q on stdin.
	_, _ = io.WriteString(f.stdin, "q\n")
	_ = f.stdin.Close()

	var stopErr error
	timer := time.NewTimer(f.stopTimeout)
	select {
	case <-f.exited:
	case <-timer.C:
		_ = f.cmd.Process.Kill()
		<-f.exited
		stopErr = fmt.Errorf("ffmpeg did not exit within %s", f.stopTimeout)
	}
	timer.Stop()

	if started {
		close(f.quit)
		<-f.done
	}
	f.flush()
	return stopErr
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Take returns everything written since the last call.
func (b *lockedBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(b.buf.Bytes())
	b.buf.Reset()
	return out
}

type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
