package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alchemmist/lazy-rec/internal/config"
	"github.com/alchemmist/lazy-rec/internal/host"
	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
	"github.com/alchemmist/lazy-rec/internal/settings"
)

type RecordOptions struct {
	// SourceID picks the capture source; empty means the first screen.
	SourceID string
	// Output is a fixed destination; empty saves into the configured save dir.
	Output string
	// Duration stops the recording automatically; zero records until ctx is
	// done or a stop trigger arrives.
	Duration time.Duration
	// Listen serves the control endpoint while recording.
	Listen   bool
	Settings settings.Update
}

// Record runs one headless recording and returns the saved result.
func (a *App) Record(ctx context.Context, opts RecordOptions) (*recorder.Result, error) {
	unlock, err := acquireLock(a.cfg.Display)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := a.settings.Apply(opts.Settings); err != nil {
		return nil, err
	}
	sources, err := a.catalog.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	id, err := pickSource(sources, opts.SourceID)
	if err != nil {
		return nil, err
	}
	if err := a.recorder.Select(id); err != nil {
		return nil, err
	}

	switch {
	case strings.TrimSpace(opts.Output) != "":
		a.host.SetPrompter(host.DirPrompter{Path: opts.Output})
	case a.cfg.Dialog != config.DialogZenity:
		a.host.SetPrompter(host.DirPrompter{Dir: a.cfg.SaveDir})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan recorder.Outcome, triggerQueue)
	go a.RunTriggers(runCtx, func(o recorder.Outcome) {
		select {
		case outcomes <- o:
		default:
		}
	})
	if opts.Listen {
		go func() {
			if err := a.ServeControl(runCtx); err != nil {
				a.logger.Error("control server stopped", "error", err)
			}
		}()
	}

	if err := a.recorder.Start(ctx); err != nil {
		return nil, err
	}

	var deadline <-chan time.Time
	if opts.Duration > 0 {
		t := time.NewTimer(opts.Duration)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return a.stopHeadless(ctx, outcomes)
		case <-deadline:
			return a.stopHeadless(ctx, outcomes)
		case o := <-outcomes:
			if o.Trigger == recorder.TriggerStop && !errors.Is(o.Err, recorder.ErrInvalidTransition) {
				return o.Result, o.Err
			}
		}
	}
}

func (a *App) stopHeadless(ctx context.Context, outcomes <-chan recorder.Outcome) (*recorder.Result, error) {
	res, err := a.recorder.Stop(ctx)
	if err == nil && res != nil {
		return res, nil
	}
	if err != nil && !errors.Is(err, recorder.ErrInvalidTransition) {
		return nil, err
	}
	// A stop trigger got there first; wait for its outcome.
	timeout := time.NewTimer(a.cfg.StopTimeout + 5*time.Second)
	defer timeout.Stop()
	for {
		select {
		case o := <-outcomes:
			if o.Trigger == recorder.TriggerStop && !errors.Is(o.Err, recorder.ErrInvalidTransition) {
				return o.Result, o.Err
			}
		case <-timeout.C:
			return nil, errors.New("timed out waiting for the recording to stop")
		}
	}
}

func pickSource(sources []recording.CaptureSource, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		for _, s := range sources {
			if s.ID == id {
				return id, nil
			}
		}
		// Fall back to a case-insensitive name match, handy for window titles.
		for _, s := range sources {
			if strings.EqualFold(s.Name, id) {
				return s.ID, nil
			}
		}
		return "", fmt.Errorf("source %q not found", id)
	}
	for _, s := range sources {
		if s.Category == recording.CategoryScreen {
			return s.ID, nil
		}
	}
	if len(sources) > 0 {
		return sources[0].ID, nil
	}
	return "", recorder.ErrNoSourceSelected
}
