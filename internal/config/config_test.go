package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, k := range []string{
		"LAZY_REC_FFMPEG", "LAZY_REC_DISPLAY", "LAZY_REC_DATA_DIR", "LAZY_REC_SAVE_DIR",
		"LAZY_REC_DIALOG", "LAZY_REC_LOG_LEVEL", "LAZY_REC_FPS", "LAZY_REC_QUALITY", "XDG_VIDEOS_DIR",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestDefault(t *testing.T) {
	home := isolate(t)
	cfg := Default()
	if cfg.FFmpegBin != "ffmpeg" {
		t.Fatalf("expected ffmpeg binary, got %q", cfg.FFmpegBin)
	}
	if cfg.DataDir != filepath.Join(home, "data", "lazy-rec") {
		t.Fatalf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.SaveDir != filepath.Join(home, "Videos") {
		t.Fatalf("unexpected save dir %q", cfg.SaveDir)
	}
	if cfg.Tick != time.Second || cfg.Slice != time.Second {
		t.Fatalf("unexpected intervals %s %s", cfg.Tick, cfg.Slice)
	}
	if cfg.Recording != recording.DefaultSettings() {
		t.Fatalf("unexpected recording defaults %#v", cfg.Recording)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dialog != DialogTUI {
		t.Fatalf("expected tui dialog, got %q", cfg.Dialog)
	}
}

func TestLoadXDGFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, FilePath(), `
ffmpeg_bin = "/opt/ffmpeg/bin/ffmpeg"
save_dir = "~/Screencasts"
dialog = "zenity"
thumbnails = true
slice = "500ms"

[recording]
quality = "Medium"
fps = 30
include_audio = false
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FFmpegBin != "/opt/ffmpeg/bin/ffmpeg" || cfg.Dialog != DialogZenity || !cfg.Thumbnails {
		t.Fatalf("file values not applied: %#v", cfg)
	}
	if cfg.SaveDir != filepath.Join(home, "Screencasts") {
		t.Fatalf("tilde not expanded: %q", cfg.SaveDir)
	}
	if cfg.Slice != 500*time.Millisecond {
		t.Fatalf("unexpected slice %s", cfg.Slice)
	}
	want := recording.Settings{Quality: recording.QualityMedium, FPS: 30, IncludeAudio: false}
	if cfg.Recording != want {
		t.Fatalf("unexpected recording settings %#v", cfg.Recording)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeConfig(t, path, "ffmpeg_bin = \"from-file\"\n[recording]\nfps = 24\n")
	t.Setenv("LAZY_REC_FFMPEG", "from-env")
	t.Setenv("LAZY_REC_FPS", "15")
	t.Setenv("LAZY_REC_CONTROL_ADDR", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FFmpegBin != "from-env" || cfg.Recording.FPS != 15 {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
	if cfg.ControlAddr != "" {
		t.Fatalf("empty LAZY_REC_CONTROL_ADDR must disable the control server, got %q", cfg.ControlAddr)
	}
}

func TestEmptyControlAddrInFileDisablesServer(t *testing.T) {
	isolate(t)
	t.Setenv("LAZY_REC_CONTROL_ADDR", "")
	os.Unsetenv("LAZY_REC_CONTROL_ADDR")

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "control_addr = \"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ControlAddr != "" {
		t.Fatalf("empty control_addr must disable the control server, got %q", cfg.ControlAddr)
	}

	writeConfig(t, path, "control_addr = \"127.0.0.1:9999\"\n")
	if cfg, err = Load(path); err != nil || cfg.ControlAddr != "127.0.0.1:9999" {
		t.Fatalf("expected the file address, got %q %v", cfg.ControlAddr, err)
	}

	writeConfig(t, path, "log_level = \"debug\"\n")
	if cfg, err = Load(path); err != nil || cfg.ControlAddr != Default().ControlAddr {
		t.Fatalf("unset control_addr must keep the default, got %q %v", cfg.ControlAddr, err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolate(t)
	tests := map[string]string{
		"fps":      "[recording]\nfps = 25\n",
		"quality":  "[recording]\nquality = \"ultra\"\n",
		"dialog":   "dialog = \"kdialog\"\n",
		"duration": "tick = \"soon\"\n",
		"syntax":   "tick = \n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeConfig(t, path, body)
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error for %s", strings.TrimSpace(body))
			}
		})
	}
}

func TestLoadRejectsBadEnvFPS(t *testing.T) {
	isolate(t)
	t.Setenv("LAZY_REC_FPS", "sixty")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric LAZY_REC_FPS")
	}
}
