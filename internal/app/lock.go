package app

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var ErrAlreadyRunning = errors.New("another lazy-rec instance is running")

// lockPath is the per-display lock file under the runtime dir.
func lockPath(display string) string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(display))
	return filepath.Join(runtimeDir, fmt.Sprintf("lazy-rec-%x.lock", h.Sum64()))
}

// acquireLock takes an exclusive flock keyed on the X display so two
// recorders never fight over the same screen. The holder's pid is kept in
// the file for LockHolder.
func acquireLock(display string) (func(), error) {
	path := lockPath(display)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		pid := readPID(f)
		_ = f.Close()
		if pid > 0 {
			return nil, fmt.Errorf("%w on display %s (pid %d)", ErrAlreadyRunning, display, pid)
		}
		return nil, fmt.Errorf("%w on display %s", ErrAlreadyRunning, display)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return func() {
		_ = f.Truncate(0)
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}

// LockHolder reports the pid of the recorder holding the lock for display.
func LockHolder(display string) (int, bool) {
	f, err := os.Open(lockPath(display))
	if err != nil {
		return 0, false
	}
	defer f.Close()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return 0, false
	}
	pid := readPID(f)
	return pid, pid > 0
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
