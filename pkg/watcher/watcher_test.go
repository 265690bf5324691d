package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/hikelog/pkg/logger"
)

func startWatcher(t *testing.T, dir string, debounce time.Duration) Watcher {
	t.Helper()

	w, err := New(Config{Debounce: debounce}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := w.Close(); err != nil {
			t.Logf("Close() error = %v", err)
		}
	})

	if err := w.Start(context.Background(), dir); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w
}

func waitEvent(t *testing.T, w Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		return ev, ok
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestNewAndClose(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestStartCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox", "nested")
	startWatcher(t, dir, 20*time.Millisecond)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("inbox directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("inbox path is not a directory")
	}
}

func TestStartWithoutPaths(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(context.Background()); !errors.Is(err, ErrNoPaths) {
		t.Errorf("Start() error = %v, want ErrNoPaths", err)
	}
}

func TestStartAlreadyStarted(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 20*time.Millisecond)

	if err := w.Start(context.Background(), dir); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartAfterClose(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = w.Close()

	if err := w.Start(context.Background(), t.TempDir()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Start() error = %v, want ErrWatcherClosed", err)
	}
}

func TestFileCreateEmitsEvent(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 20*time.Millisecond)

	path := filepath.Join(dir, "batch-001.jsonl")
	if err := os.WriteFile(path, []byte(`{"op":"delete","id":"x"}`+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ev, ok := waitEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("no event received")
	}
	if ev.Path != path {
		t.Errorf("event path = %s, want %s", ev.Path, path)
	}
	if ev.Op != OpCreate {
		t.Errorf("event op = %s, want CREATE", ev.Op)
	}
}

func TestBurstIsCoalesced(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 200*time.Millisecond)

	path := filepath.Join(dir, "batch.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("{}\n"); err != nil {
			t.Fatalf("WriteString() error = %v", err)
		}
	}
	_ = f.Close()

	if _, ok := waitEvent(t, w, 2*time.Second); !ok {
		t.Fatal("no event received")
	}
	if ev, ok := waitEvent(t, w, 400*time.Millisecond); ok {
		t.Errorf("unexpected second event %+v", ev)
	}
}

func TestOtherExtensionsIgnored(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 20*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if ev, ok := waitEvent(t, w, 300*time.Millisecond); ok {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestFileRemoveEmitsEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w := startWatcher(t, dir, 20*time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	ev, ok := waitEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("no event received")
	}
	if ev.Op != OpRemove {
		t.Errorf("event op = %s, want REMOVE", ev.Op)
	}
}

func TestEventsClosedOnClose(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_ = w.Close()

	if _, ok := <-w.Events(); ok {
		t.Error("Events() channel still open after Close")
	}
	if _, ok := <-w.Errors(); ok {
		t.Error("Errors() channel still open after Close")
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{Op(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %s, want %s", tt.op, got, tt.want)
		}
	}
}
