package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prompter asks the user where to save a recording. An empty path with a nil
// error means the user cancelled.
type Prompter interface {
	Prompt(ctx context.Context, defaultName string, exts []string) (string, error)
}

type PrompterFunc func(ctx context.Context, defaultName string, exts []string) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, defaultName string, exts []string) (string, error) {
	return f(ctx, defaultName, exts)
}

// DirPrompter answers without user interaction. With Path set it always
// returns that path; otherwise the default name inside Dir.
type DirPrompter struct {
	Dir  string
	Path string
}

func (d DirPrompter) Prompt(_ context.Context, defaultName string, _ []string) (string, error) {
	if p := strings.TrimSpace(d.Path); p != "" {
		return p, nil
	}
	dir := strings.TrimSpace(d.Dir)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, defaultName), nil
}

// ZenityPrompter opens a native GTK save dialog.
type ZenityPrompter struct {
	Bin     string
	Dir     string
	Display string
}

func (z ZenityPrompter) Prompt(ctx context.Context, defaultName string, exts []string) (string, error) {
	bin := z.Bin
	if strings.TrimSpace(bin) == "" {
		bin = "zenity"
	}
	start := defaultName
	if z.Dir != "" {
		start = filepath.Join(z.Dir, defaultName)
	}

	args := []string{"--file-selection", "--save", "--confirm-overwrite", "--title", "Save recording", "--filename", start}
	if len(exts) > 0 && exts[0] != "*" {
		patterns := make([]string, 0, len(exts))
		for _, e := range exts {
			patterns = append(patterns, "*."+e)
		}
		args = append(args, "--file-filter", "Recordings | "+strings.Join(patterns, " "))
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	if z.Display != "" {
		cmd.Env = append(os.Environ(), "DISPLAY="+z.Display)
	}
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("zenity save dialog failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
