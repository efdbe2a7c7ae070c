// Package recorder owns the recording session lifecycle: source selection,
// start/pause/resume/stop, duration accrual, chunk buffering and the handoff
// of the recorded bytes to persistence.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alchemmist/lazy-rec/internal/capture"
	"github.com/alchemmist/lazy-rec/internal/catalog"
	"github.com/alchemmist/lazy-rec/internal/history"
	"github.com/alchemmist/lazy-rec/internal/recording"
	"github.com/alchemmist/lazy-rec/internal/settings"
)

var (
	ErrInvalidTransition  = errors.New("invalid lifecycle transition")
	ErrNoSourceSelected   = errors.New("no capture source selected")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrCaptureUnavailable = capture.ErrCaptureUnavailable
)

const (
	DefaultTick      = time.Second
	DefaultExtension = "webm"
)

// Persister is the save half of the host bridge.
type Persister interface {
	ChooseSaveDestination(ctx context.Context, defaultName string, exts []string) (string, error)
	WriteBytes(ctx context.Context, path string, payload []byte) error
}

type Config struct {
	Catalog   *catalog.Catalog
	Settings  *settings.Store
	History   *history.History
	Capture   capture.Primitive
	Persister Persister
	Logger    *slog.Logger

	// Tick is the display refresh interval while recording.
	Tick time.Duration
	// Slice is the chunk interval requested from the capture feed.
	Slice time.Duration
	Now   func() time.Time
	NewID func() string
}

type Controller struct {
	catalog   *catalog.Catalog
	settings  *settings.Store
	history   *history.History
	capture   capture.Primitive
	persister Persister
	logger    *slog.Logger
	tick      time.Duration
	slice     time.Duration
	now       func() time.Time
	newID     func() string

	mu          sync.Mutex
	state       State
	active      *recording.Session
	feed        capture.Feed
	gen         uint64
	accepting   bool
	chunks      [][]byte
	buffered    int
	pausedAt    time.Time
	totalPaused time.Duration
	duration    time.Duration
	tickStop    chan struct{}

	// pubMu orders snapshots and their delivery across publishers.
	pubMu   sync.Mutex
	subMu   sync.Mutex
	subs    map[uint64]func(Status)
	nextSub uint64
}

func New(cfg Config) *Controller {
	c := &Controller{
		catalog:   cfg.Catalog,
		settings:  cfg.Settings,
		history:   cfg.History,
		capture:   cfg.Capture,
		persister: cfg.Persister,
		logger:    cfg.Logger,
		tick:      cfg.Tick,
		slice:     cfg.Slice,
		now:       cfg.Now,
		newID:     cfg.NewID,
		subs:      make(map[uint64]func(Status)),
	}
	if c.catalog == nil {
		c.catalog = catalog.New(nil)
	}
	if c.settings == nil {
		c.settings = settings.New(recording.DefaultSettings())
	}
	if c.history == nil {
		c.history = history.New()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tick <= 0 {
		c.tick = DefaultTick
	}
	if c.slice <= 0 {
		c.slice = capture.DefaultSlice
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = newSessionID
	}
	return c
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (c *Controller) Catalog() *catalog.Catalog { return c.catalog }

func (c *Controller) Settings() *settings.Store { return c.settings }

func (c *Controller) History() *history.History { return c.history }

func (c *Controller) Sessions() []recording.Session { return c.history.List() }

func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidTransition, state)
	}
	src, ok := c.catalog.Selected()
	if !ok {
		c.mu.Unlock()
		return ErrNoSourceSelected
	}
	snap := c.settings.Current()
	c.gen++
	gen := c.gen
	c.state = Starting
	c.accepting = true
	c.chunks = nil
	c.buffered = 0
	c.mu.Unlock()
	c.publish()

	feed, err := c.capture.Acquire(ctx, src.ID, capture.OptionsFrom(snap))
	if err == nil {
		err = feed.Start(c.slice, func(chunk []byte) { c.appendChunk(gen, chunk) })
		if err != nil {
			if stopErr := feed.Stop(); stopErr != nil {
				c.logger.Warn("release feed after failed start", "error", stopErr)
			}
		}
	}
	if err != nil {
		c.mu.Lock()
		c.state = Idle
		c.accepting = false
		c.chunks = nil
		c.buffered = 0
		c.mu.Unlock()
		c.publish()

		c.logger.Warn("capture unavailable", "source", src.ID, "error", err)
		if errors.Is(err, ErrCaptureUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	c.mu.Lock()
	now := c.now()
	c.active = &recording.Session{
		ID:        c.newID(),
		Name:      "Recording " + src.Name,
		SourceID:  src.ID,
		StartTime: now,
		Settings:  snap,
	}
	c.feed = feed
	c.totalPaused = 0
	c.pausedAt = time.Time{}
	c.duration = 0
	c.state = Recording
	c.startTickLocked()
	id := c.active.ID
	c.mu.Unlock()
	c.publish()

	c.logger.Info("recording started", "session", id, "source", src.ID, "quality", snap.Quality, "fps", snap.FPS, "audio", snap.IncludeAudio)
	return nil
}

// Pause freezes the duration and pauses the feed. It reports false when
// nothing is recording.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return false
	}
	if err := c.feed.Pause(); err != nil {
		c.mu.Unlock()
		c.logger.Warn("pause feed", "error", err)
		return false
	}
	now := c.now()
	c.refreshDurationLocked(now)
	c.pausedAt = now
	c.state = Paused
	c.stopTickLocked()
	c.mu.Unlock()
	c.publish()
	return true
}

func (c *Controller) Resume() bool {
	c.mu.Lock()
	if c.state != Paused {
		c.mu.Unlock()
		return false
	}
	if err := c.feed.Resume(); err != nil {
		c.mu.Unlock()
		c.logger.Warn("resume feed", "error", err)
		return false
	}
	if span := c.now().Sub(c.pausedAt); span > 0 {
		c.totalPaused += span
	}
	c.pausedAt = time.Time{}
	c.state = Recording
	c.startTickLocked()
	c.mu.Unlock()
	c.publish()
	return true
}

func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	switch state {
	case Paused:
		return c.Resume()
	case Recording:
		return c.Pause()
	default:
		return false
	}
}

// Stop ends the active session, collects its data and hands it to the
// persister. It returns nil, nil when nothing is recording. Once begun, the
// save sequence is not cancelled by ctx.
func (c *Controller) Stop(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	switch c.state {
	case Recording, Paused:
	case Starting, Stopping:
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: stop while %s", ErrInvalidTransition, state)
	default:
		c.mu.Unlock()
		return nil, nil
	}
	now := c.now()
	if c.state == Recording {
		c.refreshDurationLocked(now)
	}
	c.stopTickLocked()
	c.state = Stopping
	c.active.EndTime = now
	c.active.Duration = c.duration
	session := *c.active
	feed := c.feed
	c.mu.Unlock()
	c.publish()

	if err := feed.Stop(); err != nil {
		c.logger.Warn("feed did not stop cleanly", "session", session.ID, "error", err)
	}

	c.mu.Lock()
	payload := bytes.Join(c.chunks, nil)
	c.chunks = nil
	c.buffered = 0
	c.accepting = false
	c.feed = nil
	c.mu.Unlock()

	defer c.finish()

	persistCtx := context.WithoutCancel(ctx)
	name := DefaultFileName(now)
	path, err := c.persister.ChooseSaveDestination(persistCtx, name, []string{DefaultExtension})
	if err != nil {
		c.logger.Error("choose save destination", "session", session.ID, "error", err)
		return nil, fmt.Errorf("%w: choose destination: %w", ErrPersistenceFailure, err)
	}
	if path == "" {
		c.logger.Info("save cancelled, recording discarded", "session", session.ID, "bytes", len(payload))
		return &Result{Session: session}, nil
	}
	if err := c.persister.WriteBytes(persistCtx, path, payload); err != nil {
		c.logger.Error("write recording", "session", session.ID, "path", path, "error", err)
		return nil, fmt.Errorf("%w: write %s: %w", ErrPersistenceFailure, path, err)
	}

	session.SavedPath = path
	c.history.Add(session)
	c.logger.Info("recording saved", "session", session.ID, "path", path, "bytes", len(payload), "duration", session.Duration)
	return &Result{Session: session, Path: path}, nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.state = Idle
	c.active = nil
	c.chunks = nil
	c.buffered = 0
	c.duration = 0
	c.mu.Unlock()
	c.publish()
}

// DefaultFileName is the name offered in the save prompt.
func DefaultFileName(t time.Time) string {
	return "screen-recording-" + t.Format("20060102-150405") + "." + DefaultExtension
}

func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.catalog.Refresh(ctx)
	if err != nil {
		c.logger.Warn("source refresh failed", "error", err)
	}
	c.publish()
	return err
}

// Select marks a catalog entry for the next recording. An active session
// keeps the source it started with.
func (c *Controller) Select(id string) error {
	if _, err := c.catalog.Select(id); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Controller) DeleteSession(id string) bool {
	ok := c.history.Delete(id)
	if ok {
		c.logger.Info("session deleted", "session", id)
		c.publish()
	}
	return ok
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	if c.state == Recording {
		c.refreshDurationLocked(c.now())
	}
	st := Status{
		State:         c.state,
		Duration:      c.duration,
		Chunks:        len(c.chunks),
		BufferedBytes: c.buffered,
	}
	if src, ok := c.catalog.Selected(); ok {
		st.Selected = &src
		st.Armed = c.state == Idle
	}
	if c.active != nil {
		s := *c.active
		s.Duration = c.duration
		st.Active = &s
	}
	return st
}

// Subscribe registers fn to receive a Status after every transition and
// every tick. fn is called outside the controller lock, in publication order,
// and must not call back into lifecycle commands.
func (c *Controller) Subscribe(fn func(Status)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	st := c.Status()
	c.subMu.Lock()
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (c *Controller) appendChunk(gen uint64, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.accepting {
		c.logger.Debug("dropping stale chunk", "generation", gen, "bytes", len(chunk))
		return
	}
	c.chunks = append(c.chunks, chunk)
	c.buffered += len(chunk)
}

// refreshDurationLocked recomputes now - start - paused, never moving backwards.
func (c *Controller) refreshDurationLocked(now time.Time) {
	if c.active == nil {
		return
	}
	d := now.Sub(c.active.StartTime) - c.totalPaused
	if d > c.duration {
		c.duration = d
	}
}

func (c *Controller) startTickLocked() {
	c.stopTickLocked()
	stop := make(chan struct{})
	c.tickStop = stop
	go c.runTick(stop)
}

func (c *Controller) stopTickLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func (c *Controller) runTick(stop <-chan struct{}) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.mu.Lock()
			recordingNow := c.state == Recording
			c.mu.Unlock()
			if !recordingNow {
				return
			}
			c.publish()
		}
	}
}

// Dispatch maps an out-of-band trigger onto the lifecycle command of the same
// name with the same guards. Only TriggerStop yields a Result.
func (c *Controller) Dispatch(ctx context.Context, t Trigger) (*Result, error) {
	switch t {
	case TriggerNew:
		return nil, c.Refresh(ctx)
	case TriggerStart:
		return nil, c.Start(ctx)
	case TriggerStop:
		return c.Stop(ctx)
	case TriggerTogglePause:
		if !c.TogglePause() {
			return nil, fmt.Errorf("%w: toggle-pause without an active recording", ErrInvalidTransition)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown trigger %q", t)
	}
}

// Outcome is what Run reports after handling one trigger.
type Outcome struct {
	Trigger Trigger
	Result  *Result
	Err     error
}

// Run consumes triggers one at a time until ctx is done or triggers is
// closed, passing every outcome to report when it is non-nil.
func (c *Controller) Run(ctx context.Context, triggers <-chan Trigger, report func(Outcome)) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-triggers:
			if !ok || ctx.Err() != nil {
				return
			}
			c.logger.Debug("trigger received", "trigger", t)
			res, err := c.Dispatch(ctx, t)
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				c.logger.Warn("trigger failed", "trigger", t, "error", err)
			}
			if report != nil {
				report(Outcome{Trigger: t, Result: res, Err: err})
			}
		}
	}
}
