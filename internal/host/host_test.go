package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeFakeBin(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\nset -eu\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

const monitorsOut = `Monitors: 2
 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1
 1: +HDMI-1 2560/597x1440/336+1920+0  HDMI-1
`

const windowsOut = `0x01e00003 -1 box Desktop
0x03a00003  0 box Terminal - nvim
0x04200007  1 box Firefox
`

func TestSplitLines(t *testing.T) {
	got := splitLines("  one \n\n two\n\t\nthree  \n")
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestParseMonitors(t *testing.T) {
	got := parseMonitors(monitorsOut)
	if len(got) != 2 {
		t.Fatalf("expected 2 screens, got %#v", got)
	}
	if got[0].ID != "screen:1920x1080+0+0" || got[0].Name != "Screen 1 (eDP-1)" {
		t.Fatalf("unexpected first screen: %#v", got[0])
	}
	if got[1].ID != "screen:2560x1440+1920+0" || got[1].Name != "Screen 2 (HDMI-1)" {
		t.Fatalf("unexpected second screen: %#v", got[1])
	}
}

func TestParseWindowsSkipsStickyDesktop(t *testing.T) {
	got := parseWindows(windowsOut)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %#v", got)
	}
	if got[0].ID != "window:0x03a00003" || got[0].Name != "Terminal - nvim" {
		t.Fatalf("unexpected window: %#v", got[0])
	}
}

func TestListSourcesScreensThenWindows(t *testing.T) {
	xrandr := writeFakeBin(t, "xrandr", "cat <<'OUT'\n"+monitorsOut+"OUT")
	wmctrl := writeFakeBin(t, "wmctrl", "cat <<'OUT'\n"+windowsOut+"OUT")
	l := NewLocal(Tools{Xrandr: xrandr, Wmctrl: wmctrl}, nil)

	got, err := l.ListSources(context.Background())
	if err != nil {
		t.Fatalf("list sources: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 sources, got %#v", got)
	}
	if !strings.HasPrefix(got[0].ID, "screen:") || !strings.HasPrefix(got[3].ID, "window:") {
		t.Fatalf("unexpected order: %#v", got)
	}
	for _, s := range got {
		if len(s.Thumbnail) != 0 {
			t.Fatalf("thumbnails must be off by default: %#v", s)
		}
	}
}

func TestListSourcesWithoutWmctrl(t *testing.T) {
	xrandr := writeFakeBin(t, "xrandr", "cat <<'OUT'\n"+monitorsOut+"OUT")
	l := NewLocal(Tools{Xrandr: xrandr, Wmctrl: filepath.Join(t.TempDir(), "missing")}, nil)

	got, err := l.ListSources(context.Background())
	if err != nil {
		t.Fatalf("list sources: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected screens only, got %#v", got)
	}
}

func TestListSourcesXrandrFailure(t *testing.T) {
	xrandr := writeFakeBin(t, "xrandr", "echo \"Can't open display\" >&2\nexit 1")
	l := NewLocal(Tools{Xrandr: xrandr}, nil)

	_, err := l.ListSources(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Can't open display") {
		t.Fatalf("expected xrandr error, got %v", err)
	}
}

func TestListSourcesWithThumbnails(t *testing.T) {
	xrandr := writeFakeBin(t, "xrandr", "cat <<'OUT'\n"+monitorsOut+"OUT")
	ffmpeg := writeFakeBin(t, "ffmpeg", "printf 'PNG'")
	l := NewLocal(Tools{Xrandr: xrandr, Wmctrl: filepath.Join(t.TempDir(), "missing"), FFmpeg: ffmpeg}, nil, WithThumbnails(true))

	got, err := l.ListSources(context.Background())
	if err != nil {
		t.Fatalf("list sources: %v", err)
	}
	for _, s := range got {
		if string(s.Thumbnail) != "PNG" {
			t.Fatalf("expected thumbnail for %s, got %q", s.ID, s.Thumbnail)
		}
	}
}

func TestChooseSaveDestinationAppendsExtension(t *testing.T) {
	l := NewLocal(Tools{}, DirPrompter{Path: "/tmp/out/clip"})
	got, err := l.ChooseSaveDestination(context.Background(), "screen-recording.webm", []string{"webm"})
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got != "/tmp/out/clip.webm" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestChooseSaveDestinationKeepsExplicitExtension(t *testing.T) {
	l := NewLocal(Tools{}, DirPrompter{Path: "/tmp/out/clip.mkv"})
	got, err := l.ChooseSaveDestination(context.Background(), "x.webm", []string{"webm"})
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got != "/tmp/out/clip.mkv" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestChooseSaveDestinationCancelled(t *testing.T) {
	l := NewLocal(Tools{}, PrompterFunc(func(context.Context, string, []string) (string, error) {
		return "  ", nil
	}))
	got, err := l.ChooseSaveDestination(context.Background(), "x.webm", []string{"webm"})
	if err != nil || got != "" {
		t.Fatalf("expected cancel, got %q, %v", got, err)
	}
}

func TestChooseSaveDestinationWithoutPrompter(t *testing.T) {
	l := NewLocal(Tools{}, nil)
	if _, err := l.ChooseSaveDestination(context.Background(), "x.webm", nil); err == nil {
		t.Fatal("expected error without prompter")
	}
}

func TestSetPrompterWhileChoosing(t *testing.T) {
	l := NewLocal(Tools{}, DirPrompter{Dir: "/a"})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			l.SetPrompter(DirPrompter{Dir: "/b"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			got, err := l.ChooseSaveDestination(context.Background(), "x.webm", []string{"webm"})
			if err != nil || (got != "/a/x.webm" && got != "/b/x.webm") {
				t.Errorf("unexpected destination %q %v", got, err)
				return
			}
		}
	}()
	wg.Wait()

	if got, _ := l.ChooseSaveDestination(context.Background(), "x.webm", nil); got != "/b/x.webm" {
		t.Fatalf("expected the swapped prompter, got %q", got)
	}
}

func TestDirPrompterUsesDefaultName(t *testing.T) {
	got, err := DirPrompter{Dir: "/videos"}.Prompt(context.Background(), "a.webm", nil)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if got != "/videos/a.webm" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestZenityPrompter(t *testing.T) {
	zenity := writeFakeBin(t, "zenity", `echo "$*" > "$ZENITY_LOG"
echo /home/me/Videos/take1.webm`)
	logPath := filepath.Join(t.TempDir(), "zenity.log")
	t.Setenv("ZENITY_LOG", logPath)

	got, err := ZenityPrompter{Bin: zenity, Dir: "/home/me/Videos"}.Prompt(context.Background(), "rec.webm", []string{"webm"})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if got != "/home/me/Videos/take1.webm" {
		t.Fatalf("unexpected path %q", got)
	}
	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "--filename /home/me/Videos/rec.webm") || !strings.Contains(string(b), "*.webm") {
		t.Fatalf("unexpected zenity args: %s", b)
	}
}

func TestZenityPrompterCancel(t *testing.T) {
	zenity := writeFakeBin(t, "zenity", "exit 1")
	got, err := ZenityPrompter{Bin: zenity}.Prompt(context.Background(), "rec.webm", nil)
	if err != nil || got != "" {
		t.Fatalf("expected cancel, got %q, %v", got, err)
	}
}

func TestZenityPrompterFailure(t *testing.T) {
	zenity := writeFakeBin(t, "zenity", "exit 5")
	if _, err := (ZenityPrompter{Bin: zenity}).Prompt(context.Background(), "rec.webm", nil); err == nil {
		t.Fatal("expected error for unexpected exit status")
	}
}

func TestWriteBytesCreatesParentsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "rec.webm")
	l := NewLocal(Tools{}, nil)

	if err := l.WriteBytes(context.Background(), path, []byte("webm-bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "webm-bytes" {
		t.Fatalf("unexpected content %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestWriteBytesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "rec.webm")
	if err := NewLocal(Tools{}, nil).WriteBytes(ctx, path, []byte("x")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("nothing must be written for a cancelled context")
	}
}

func TestWriteBytesEmptyPath(t *testing.T) {
	if err := NewLocal(Tools{}, nil).WriteBytes(context.Background(), " ", []byte("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestListAudioInputs(t *testing.T) {
	pactl := writeFakeBin(t, "pactl", `printf '51\talsa_input.analog-stereo\tPipeWire\ts32le 2ch 48000Hz\tSUSPENDED\n52\talsa_output.analog-stereo.monitor\tPipeWire\ts32le 2ch 48000Hz\tIDLE\n'`)
	got, err := NewLocal(Tools{Pactl: pactl}, nil).ListAudioInputs(context.Background())
	if err != nil {
		t.Fatalf("list audio: %v", err)
	}
	if len(got) != 2 || got[0] != "alsa_input.analog-stereo" || got[1] != "alsa_output.analog-stereo.monitor" {
		t.Fatalf("unexpected inputs: %#v", got)
	}
}

func TestRuntimeVersions(t *testing.T) {
	ffmpeg := writeFakeBin(t, "ffmpeg", "echo 'ffmpeg version 6.1.1 Copyright (c) 2000-2023'\necho 'built with gcc'")
	v := NewLocal(Tools{FFmpeg: ffmpeg}, nil).RuntimeVersions(context.Background())
	if v.Renderer != "ffmpeg version 6.1.1 Copyright (c) 2000-2023" {
		t.Fatalf("unexpected renderer %q", v.Renderer)
	}
	if !strings.HasPrefix(v.Engine, "go") || v.Host == "" {
		t.Fatalf("unexpected versions %#v", v)
	}
}

func TestRuntimeVersionsWithoutFFmpeg(t *testing.T) {
	v := NewLocal(Tools{FFmpeg: filepath.Join(t.TempDir(), "missing")}, nil).RuntimeVersions(context.Background())
	if v.Renderer != "unavailable" {
		t.Fatalf("expected unavailable renderer, got %q", v.Renderer)
	}
}
