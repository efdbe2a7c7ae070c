package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alchemmist/lazy-rec/internal/recording"
)

const (
	DialogTUI    = "tui"
	DialogZenity = "zenity"
	DialogDir    = "dir"
)

type Config struct {
	FFmpegBin string
	XrandrBin string
	WmctrlBin string
	PactlBin  string
	ZenityBin string
	Display   string

	DataDir string
	SaveDir string
	// Dialog picks how the save destination is asked for: tui, zenity or dir.
	Dialog      string
	ControlAddr string
	LogFile     string
	LogLevel    string
	Thumbnails  bool

	Tick        time.Duration
	Slice       time.Duration
	StopTimeout time.Duration

	Recording recording.Settings
}

type fileConfig struct {
	FFmpegBin   string  `toml:"ffmpeg_bin"`
	XrandrBin   string  `toml:"xrandr_bin"`
	WmctrlBin   string  `toml:"wmctrl_bin"`
	PactlBin    string  `toml:"pactl_bin"`
	ZenityBin   string  `toml:"zenity_bin"`
	Display     string  `toml:"display"`
	DataDir     string  `toml:"data_dir"`
	SaveDir     string  `toml:"save_dir"`
	Dialog      string  `toml:"dialog"`
	ControlAddr *string `toml:"control_addr"`
	LogFile     string  `toml:"log_file"`
	LogLevel    string  `toml:"log_level"`
	Thumbnails  *bool   `toml:"thumbnails"`
	Tick        string  `toml:"tick"`
	Slice       string  `toml:"slice"`
	StopTimeout string  `toml:"stop_timeout"`

	Recording struct {
		Quality      string `toml:"quality"`
		FPS          int    `toml:"fps"`
		IncludeAudio *bool  `toml:"include_audio"`
		AudioDevice  string `toml:"audio_device"`
	} `toml:"recording"`
}

func Default() Config {
	dataDir := DefaultDataDir()
	display := strings.TrimSpace(os.Getenv("DISPLAY"))
	if display == "" {
		display = ":0"
	}
	return Config{
		FFmpegBin:   "ffmpeg",
		XrandrBin:   "xrandr",
		WmctrlBin:   "wmctrl",
		PactlBin:    "pactl",
		ZenityBin:   "zenity",
		Display:     display,
		DataDir:     dataDir,
		SaveDir:     DefaultSaveDir(),
		Dialog:      DialogTUI,
		ControlAddr: "127.0.0.1:47631",
		LogFile:     filepath.Join(dataDir, "lazy-rec.log"),
		LogLevel:    "info",
		Tick:        time.Second,
		Slice:       time.Second,
		StopTimeout: 10 * time.Second,
		Recording:   recording.DefaultSettings(),
	}
}

// Load starts from Default, applies the TOML file at path (or the XDG config
// file when path is empty) and then LAZY_REC_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = FilePath()
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := apply(&cfg, fc); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Recording.Validate(); err != nil {
		return fmt.Errorf("recording defaults: %w", err)
	}
	switch c.Dialog {
	case DialogTUI, DialogZenity, DialogDir:
	default:
		return fmt.Errorf("unknown dialog %q (want tui, zenity or dir)", c.Dialog)
	}
	if c.Tick <= 0 || c.Slice <= 0 || c.StopTimeout <= 0 {
		return errors.New("tick, slice and stop_timeout must be positive")
	}
	return nil
}

func apply(cfg *Config, fc fileConfig) error {
	setString(&cfg.FFmpegBin, fc.FFmpegBin)
	setString(&cfg.XrandrBin, fc.XrandrBin)
	setString(&cfg.WmctrlBin, fc.WmctrlBin)
	setString(&cfg.PactlBin, fc.PactlBin)
	setString(&cfg.ZenityBin, fc.ZenityBin)
	setString(&cfg.Display, fc.Display)
	setString(&cfg.Dialog, fc.Dialog)
	if fc.ControlAddr != nil {
		// Empty disables the control server.
		cfg.ControlAddr = strings.TrimSpace(*fc.ControlAddr)
	}
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.DataDir != "" {
		cfg.DataDir = expandTilde(fc.DataDir)
	}
	if fc.SaveDir != "" {
		cfg.SaveDir = expandTilde(fc.SaveDir)
	}
	if fc.LogFile != "" {
		cfg.LogFile = expandTilde(fc.LogFile)
	}
	if fc.Thumbnails != nil {
		cfg.Thumbnails = *fc.Thumbnails
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.Tick, &cfg.Tick, "tick"},
		{fc.Slice, &cfg.Slice, "slice"},
		{fc.StopTimeout, &cfg.StopTimeout, "stop_timeout"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if fc.Recording.Quality != "" {
		cfg.Recording.Quality = recording.Quality(strings.ToLower(fc.Recording.Quality))
	}
	if fc.Recording.FPS != 0 {
		cfg.Recording.FPS = fc.Recording.FPS
	}
	if fc.Recording.IncludeAudio != nil {
		cfg.Recording.IncludeAudio = *fc.Recording.IncludeAudio
	}
	setString(&cfg.Recording.AudioDevice, fc.Recording.AudioDevice)
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LAZY_REC_FFMPEG"); v != "" {
		cfg.FFmpegBin = v
	}
	if v := os.Getenv("LAZY_REC_DISPLAY"); v != "" {
		cfg.Display = v
	}
	if v := os.Getenv("LAZY_REC_DATA_DIR"); v != "" {
		cfg.DataDir = expandTilde(v)
	}
	if v := os.Getenv("LAZY_REC_SAVE_DIR"); v != "" {
		cfg.SaveDir = expandTilde(v)
	}
	if v := os.Getenv("LAZY_REC_DIALOG"); v != "" {
		cfg.Dialog = v
	}
	if v, ok := os.LookupEnv("LAZY_REC_CONTROL_ADDR"); ok {
		cfg.ControlAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("LAZY_REC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LAZY_REC_FPS"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LAZY_REC_FPS: %w", err)
		}
		cfg.Recording.FPS = fps
	}
	if v := os.Getenv("LAZY_REC_QUALITY"); v != "" {
		cfg.Recording.Quality = recording.Quality(strings.ToLower(v))
	}
	return nil
}

// FilePath is $XDG_CONFIG_HOME/lazy-rec/config.toml.
func FilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lazy-rec", "config.toml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "lazy-rec", "config.toml")
	}
	return filepath.Join(".lazy-rec", "config.toml")
}

func DefaultDataDir() string {
	if v := strings.TrimSpace(os.Getenv("LAZY_REC_DATA_DIR")); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "lazy-rec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lazy-rec"
	}
	return filepath.Join(home, ".local", "share", "lazy-rec")
}

func DefaultSaveDir() string {
	if v := strings.TrimSpace(os.Getenv("XDG_VIDEOS_DIR")); v != "" {
		return expandTilde(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Videos")
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
