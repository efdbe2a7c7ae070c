package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

type fakeLister struct {
	results [][]recording.RawSource
	err     error
	calls   int
}

func (f *fakeLister) ListSources(ctx context.Context) ([]recording.RawSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i], nil
}

func TestRefreshClassifiesSources(t *testing.T) {
	l := &fakeLister{results: [][]recording.RawSource{{
		{ID: "screen:1920x1080+0+0", Name: "Screen 1 (eDP-1)"},
		{ID: "window:0x1", Name: "Terminal"},
	}}}
	c := New(l)

	got, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0].Category != recording.CategoryScreen || got[1].Category != recording.CategoryWindow {
		t.Fatalf("unexpected categories: %#v", got)
	}
}

func TestRefreshReplacesWholeCatalog(t *testing.T) {
	l := &fakeLister{results: [][]recording.RawSource{
		{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		{{ID: "c", Name: "C"}},
	}}
	c := New(l)

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	got := c.Sources()
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("stale entries retained: %#v", got)
	}
}

func TestRefreshKeepsStillValidSelection(t *testing.T) {
	l := &fakeLister{results: [][]recording.RawSource{
		{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		{{ID: "b", Name: "B renamed"}, {ID: "c", Name: "C"}},
	}}
	c := New(l)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := c.Select("b"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	sel, ok := c.Selected()
	if !ok {
		t.Fatal("selection of a still-listed source must survive refresh")
	}
	if sel.Name != "B renamed" {
		t.Fatalf("selection must point at the fresh entry, got %q", sel.Name)
	}
}

func TestRefreshClearsVanishedSelection(t *testing.T) {
	l := &fakeLister{results: [][]recording.RawSource{
		{{ID: "a", Name: "A"}},
		{{ID: "c", Name: "C"}},
	}}
	c := New(l)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := c.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("selection of a vanished source must be cleared")
	}
}

func TestRefreshFailureLeavesCatalogUnchanged(t *testing.T) {
	l := &fakeLister{results: [][]recording.RawSource{{{ID: "a", Name: "A"}}}}
	c := New(l)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := c.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}

	l.err = errors.New("cannot open display")
	_, err := c.Refresh(context.Background())
	if !errors.Is(err, ErrSourceEnumeration) {
		t.Fatalf("expected ErrSourceEnumeration, got %v", err)
	}
	if got := c.Sources(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("catalog changed after failed refresh: %#v", got)
	}
	if _, ok := c.Selected(); !ok {
		t.Fatal("selection changed after failed refresh")
	}
}

func TestSelectUnknown(t *testing.T) {
	c := New(&fakeLister{results: [][]recording.RawSource{{}}})
	if _, err := c.Select("nope"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("failed select must not set a selection")
	}
}

func TestClear(t *testing.T) {
	c := New(&fakeLister{results: [][]recording.RawSource{{{ID: "a", Name: "A"}}}})
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := c.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	c.Clear()
	if _, ok := c.Selected(); ok {
		t.Fatal("expected no selection after Clear")
	}
}
