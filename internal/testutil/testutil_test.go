// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestSetHomeDir(t *testing.T) {
	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}
	tmpDir := t.TempDir()
	original, hadOriginal := os.LookupEnv(key)

	cleanup := SetHomeDir(t, tmpDir)
	if got := os.Getenv(key); got != tmpDir {
		t.Errorf("%s = %q, want %q", key, got, tmpDir)
	}

	cleanup()
	got, has := os.LookupEnv(key)
	if has != hadOriginal || got != original {
		t.Errorf("after cleanup %s = %q (set=%v), want %q (set=%v)", key, got, has, original, hadOriginal)
	}
}

func TestSetConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Cleanup(SetConfigHome(t, tmpDir))

	dir, err := os.UserConfigDir()
	if err != nil {
		t.Fatalf("UserConfigDir() error = %v", err)
	}
	if !filepath.IsAbs(dir) || len(dir) < len(tmpDir) || dir[:len(tmpDir)] != tmpDir {
		t.Errorf("UserConfigDir() = %q, want it under %q", dir, tmpDir)
	}
}

func TestMustWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "c.txt")
	MustWriteFile(t, path, "hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}
}

func TestMustReceive(t *testing.T) {
	t.Parallel()

	ch := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(ch)
	}()
	MustReceive(t, ch, time.Second, "close")
}

func TestEventually(t *testing.T) {
	t.Parallel()

	start := time.Now()
	Eventually(t, time.Second, "20ms to pass", func() bool {
		return time.Since(start) > 20*time.Millisecond
	})
}
