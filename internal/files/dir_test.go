package files

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d, err := NewDir(t.TempDir(), DefaultReceivedPrefix, logger)
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}
	return d
}

func TestReadWrite(t *testing.T) {
	d := newTestDir(t)
	if err := os.WriteFile(filepath.Join(d.Root(), "notes.txt"), []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := d.WriteWholeFile("notes.txt", []byte("remote")); err != nil {
		t.Fatalf("WriteWholeFile failed: %v", err)
	}

	local, err := d.ReadWholeFile("notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(local) != "local" {
		t.Errorf("original overwritten: %q", local)
	}
	received, err := d.ReadWholeFile("received_notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(received) != "remote" {
		t.Errorf("received = %q", received)
	}
	if !d.Exists("received_notes.txt") || d.Exists("missing.txt") {
		t.Error("Exists reported wrong state")
	}
}

func TestInvalidNames(t *testing.T) {
	d := newTestDir(t)
	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b", `a\b`} {
		if _, err := d.ReadWholeFile(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ReadWholeFile(%q) err = %v", name, err)
		}
		if d.Exists(name) {
			t.Errorf("Exists(%q) = true", name)
		}
	}
	if err := d.WriteWholeFile("../escape", []byte("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("WriteWholeFile err = %v", err)
	}
}

func TestList(t *testing.T) {
	d := newTestDir(t)
	for _, n := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(d.Root(), n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(d.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := d.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Errorf("names = %v", names)
	}
}

func TestWatch(t *testing.T) {
	d := newTestDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Watch(ctx) }()

	waitFor := func(cond func([]string) bool) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			names, _ := d.List()
			if cond(names) {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatal("index did not converge")
	}
	contains := func(names []string, want string) bool {
		for _, n := range names {
			if n == want {
				return true
			}
		}
		return false
	}

	path := filepath.Join(d.Root(), "new.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(func(names []string) bool { return contains(names, "new.bin") })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(func(names []string) bool { return !contains(names, "new.bin") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
