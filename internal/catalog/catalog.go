package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

var (
	ErrSourceEnumeration = errors.New("source enumeration failed")
	ErrUnknownSource     = errors.New("unknown capture source")
)

type Lister interface {
	ListSources(ctx context.Context) ([]recording.RawSource, error)
}

// Catalog holds the latest snapshot of capturable sources and the user's selection.
type Catalog struct {
	lister Lister

	mu       sync.Mutex
	sources  []recording.CaptureSource
	selected *recording.CaptureSource
}

func New(l Lister) *Catalog {
	return &Catalog{lister: l}
}

// Refresh replaces the whole catalog. A selection whose id is still listed
// survives the refresh and points at the fresh entry; otherwise it is cleared.
// On failure the catalog is left as it was.
func (c *Catalog) Refresh(ctx context.Context) ([]recording.CaptureSource, error) {
	if c.lister == nil {
		return nil, fmt.Errorf("%w: no source lister configured", ErrSourceEnumeration)
	}
	raw, err := c.lister.ListSources(ctx)
	if err != nil {
		if errors.Is(err, ErrSourceEnumeration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceEnumeration, err)
	}

	next := make([]recording.CaptureSource, 0, len(raw))
	for _, r := range raw {
		next = append(next, recording.CaptureSource{
			ID:        r.ID,
			Name:      r.Name,
			Thumbnail: r.Thumbnail,
			Category:  recording.Classify(r.Name),
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources = next
	if c.selected != nil {
		prev := c.selected.ID
		c.selected = nil
		for i := range next {
			if next[i].ID == prev {
				s := next[i]
				c.selected = &s
				break
			}
		}
	}
	return cloneSources(next), nil
}

func (c *Catalog) Sources() []recording.CaptureSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSources(c.sources)
}

func (c *Catalog) Select(id string) (recording.CaptureSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.sources {
		if s.ID == id {
			c.selected = &s
			return s, nil
		}
	}
	return recording.CaptureSource{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
}

func (c *Catalog) Selected() (recording.CaptureSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		return recording.CaptureSource{}, false
	}
	return *c.selected, true
}

func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

func cloneSources(in []recording.CaptureSource) []recording.CaptureSource {
	out := make([]recording.CaptureSource, len(in))
	copy(out, in)
	return out
}
