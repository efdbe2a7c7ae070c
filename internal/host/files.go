package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

func (l *Local) WriteBytes(ctx context.Context, path string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("empty destination path")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if err := writeAtomic(path, payload); err != nil {
		return err
	}
	l.logger.Info("recording written", "path", path, "bytes", len(payload))
	return nil
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, defaultFilePerm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ListAudioInputs returns PulseAudio/PipeWire source names.
func (l *Local) ListAudioInputs(ctx context.Context) ([]string, error) {
	raw, err := l.output(ctx, l.tools.Pactl, "list", "short", "sources")
	if err != nil {
		return nil, err
	}
	return parseAudioSources(raw), nil
}

// "51	alsa_input.pci-0000_00_1f.3.analog-stereo	PipeWire	s32le 2ch 48000Hz	SUSPENDED"
func parseAudioSources(raw string) []string {
	out := make([]string, 0)
	for _, line := range splitLines(raw) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		out = append(out, fields[1])
	}
	return out
}
