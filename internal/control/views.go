package control

import (
	"time"

	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
)

type SourceView struct {
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Category recording.Category `json:"category" yaml:"category"`
}

type SessionView struct {
	ID         string             `json:"id" yaml:"id"`
	Name       string             `json:"name" yaml:"name"`
	SourceID   string             `json:"source_id" yaml:"source_id"`
	StartTime  time.Time          `json:"start_time" yaml:"start_time"`
	EndTime    *time.Time         `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	DurationMs int64              `json:"duration_ms" yaml:"duration_ms"`
	SavedPath  string             `json:"saved_path,omitempty" yaml:"saved_path,omitempty"`
	Settings   recording.Settings `json:"settings" yaml:"settings"`
}

type StatusView struct {
	State         string       `json:"state" yaml:"state"`
	Armed         bool         `json:"armed" yaml:"armed"`
	Selected      *SourceView  `json:"selected,omitempty" yaml:"selected,omitempty"`
	Active        *SessionView `json:"active,omitempty" yaml:"active,omitempty"`
	DurationMs    int64        `json:"duration_ms" yaml:"duration_ms"`
	Elapsed       string       `json:"elapsed" yaml:"elapsed"`
	Chunks        int          `json:"chunks" yaml:"chunks"`
	BufferedBytes int          `json:"buffered_bytes" yaml:"buffered_bytes"`
}

func NewSourceView(s recording.CaptureSource) SourceView {
	return SourceView{ID: s.ID, Name: s.Name, Category: s.Category}
}

func NewSessionView(s recording.Session) SessionView {
	v := SessionView{
		ID:         s.ID,
		Name:       s.Name,
		SourceID:   s.SourceID,
		StartTime:  s.StartTime,
		DurationMs: s.DurationMs(),
		SavedPath:  s.SavedPath,
		Settings:   s.Settings,
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		v.EndTime = &end
	}
	return v
}

func NewSessionViews(in []recording.Session) []SessionView {
	out := make([]SessionView, 0, len(in))
	for _, s := range in {
		out = append(out, NewSessionView(s))
	}
	return out
}

func NewStatusView(st recorder.Status) StatusView {
	v := StatusView{
		State:         st.State.String(),
		Armed:         st.Armed,
		DurationMs:    st.Duration.Milliseconds(),
		Elapsed:       recording.FormatDuration(st.Duration),
		Chunks:        st.Chunks,
		BufferedBytes: st.BufferedBytes,
	}
	if st.Selected != nil {
		src := NewSourceView(*st.Selected)
		v.Selected = &src
	}
	if st.Active != nil {
		s := NewSessionView(*st.Active)
		v.Active = &s
	}
	return v
}
