package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/alchemmist/lazy-rec/internal/capture"
	"github.com/alchemmist/lazy-rec/internal/catalog"
	"github.com/alchemmist/lazy-rec/internal/config"
	"github.com/alchemmist/lazy-rec/internal/control"
	"github.com/alchemmist/lazy-rec/internal/history"
	"github.com/alchemmist/lazy-rec/internal/host"
	"github.com/alchemmist/lazy-rec/internal/notify"
	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
	"github.com/alchemmist/lazy-rec/internal/settings"
)

const triggerQueue = 16

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	host      *host.Local
	capture   *capture.FFmpeg
	primitive capture.Primitive
	catalog   *catalog.Catalog
	settings  *settings.Store
	history   *history.History
	recorder  *recorder.Controller
	notes     *notify.Stack
	triggers  chan recorder.Trigger
}

type Option func(*App)

// WithCapture replaces the ffmpeg primitive, mostly for tests.
func WithCapture(p capture.Primitive) Option {
	return func(a *App) { a.primitive = p }
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		settings: settings.New(cfg.Recording),
		history:  history.New(),
		notes:    notify.NewStack(notify.DefaultTTL, notify.DefaultLimit),
		triggers: make(chan recorder.Trigger, triggerQueue),
	}
	a.host = host.NewLocal(host.Tools{
		FFmpeg:  cfg.FFmpegBin,
		Xrandr:  cfg.XrandrBin,
		Wmctrl:  cfg.WmctrlBin,
		Pactl:   cfg.PactlBin,
		Display: cfg.Display,
	}, a.defaultPrompter(), host.WithThumbnails(cfg.Thumbnails), host.WithLogger(logger.With("component", "host")))
	a.catalog = catalog.New(a.host)

	a.capture = capture.NewFFmpeg(cfg.FFmpegBin, cfg.Display)
	a.capture.StopTimeout = cfg.StopTimeout
	a.capture.Logger = logger.With("component", "capture")
	a.primitive = a.capture

	for _, opt := range opts {
		opt(a)
	}

	a.recorder = recorder.New(recorder.Config{
		Catalog:   a.catalog,
		Settings:  a.settings,
		History:   a.history,
		Capture:   a.primitive,
		Persister: a.host,
		Logger:    logger.With("component", "recorder"),
		Tick:      cfg.Tick,
		Slice:     cfg.Slice,
	})
	return a
}

func (a *App) defaultPrompter() host.Prompter {
	switch a.cfg.Dialog {
	case config.DialogZenity:
		return host.ZenityPrompter{Bin: a.cfg.ZenityBin, Dir: a.cfg.SaveDir, Display: a.cfg.Display}
	default:
		return host.DirPrompter{Dir: a.cfg.SaveDir}
	}
}

func (a *App) Config() config.Config { return a.cfg }

func (a *App) Recorder() *recorder.Controller { return a.recorder }

func (a *App) Notifications() *notify.Stack { return a.notes }

func (a *App) Triggers() chan<- recorder.Trigger { return a.triggers }

func (a *App) SetPrompter(p host.Prompter) { a.host.SetPrompter(p) }

// Sources refreshes the catalog and returns it.
func (a *App) Sources(ctx context.Context) ([]recording.CaptureSource, error) {
	return a.catalog.Refresh(ctx)
}

func (a *App) AudioInputs(ctx context.Context) ([]string, error) {
	return a.host.ListAudioInputs(ctx)
}

func (a *App) Versions(ctx context.Context) host.Versions {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.host.RuntimeVersions(ctx)
}

// Enqueue hands a trigger to the lifecycle loop without blocking. It reports
// false when the queue is full.
func (a *App) Enqueue(t recorder.Trigger) bool {
	select {
	case a.triggers <- t:
		return true
	default:
		return false
	}
}

// RunTriggers consumes the trigger queue until ctx is done.
func (a *App) RunTriggers(ctx context.Context, report func(recorder.Outcome)) {
	a.recorder.Run(ctx, a.triggers, report)
}

// ServeControl runs the local control server until ctx is done. An empty
// control address disables it.
func (a *App) ServeControl(ctx context.Context) error {
	if a.cfg.ControlAddr == "" {
		return nil
	}
	srv := control.NewServer(a.recorder, a.triggers, a.Versions, a.logger.With("component", "control"))
	return srv.ListenAndServe(ctx, a.cfg.ControlAddr)
}
