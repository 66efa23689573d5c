package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/egret-dev/egret/internal/storage"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(want string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == want {
			return true
		}
	}
	return false
}

func watcherTestEnv(t *testing.T) (string, storage.Provider, *eventLog) {
	t.Helper()
	workDir := t.TempDir()
	store, err := storage.NewFS(workDir)
	if err != nil {
		t.Fatal(err)
	}
	return workDir, store, &eventLog{}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileReported(t *testing.T) {
	workDir, store, events := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, store, workDir, quietLogger(), events.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(workDir, "new.egret"), []byte("2019\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return events.has("created:new.egret")
	}, "expected created:new.egret callback")
}

func TestWatcher_RewriteReported(t *testing.T) {
	workDir, store, events := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(workDir, "proj.egret"), []byte("2019\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, store, workDir, quietLogger(), events.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(workDir, "proj.egret"), []byte("2019\n01 february: 09:00-10:00 1h\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return events.has("updated:proj.egret")
	}, "expected updated:proj.egret callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	workDir, store, events := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, store, workDir, quietLogger(), events.record)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(workDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.egret"), []byte("2019\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return events.has("created:" + filepath.Join("subdir", "deep.egret"))
	}, "file in new subdir not reported")
}

func TestWatcher_DeleteReported(t *testing.T) {
	workDir, store, events := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(workDir, "del.egret"), []byte("2019\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, store, workDir, quietLogger(), events.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(workDir, "del.egret"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return events.has("deleted:del.egret")
	}, "deleted file not reported")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	workDir, store, events := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(workDir, "old.egret"), []byte("2019\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, store, workDir, quietLogger(), events.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(workDir, "old.egret"), filepath.Join(workDir, "renamed.egret"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return events.has("deleted:old.egret") && events.has("created:renamed.egret")
	}, "rename reconciliation failed: old path should be dropped and new path reported")
}

func TestWatcher_UnchangedRewriteIgnored(t *testing.T) {
	workDir, store, events := watcherTestEnv(t)
	content := []byte("2019\n01 february: 09:00-10:00 1h\n")
	_ = os.WriteFile(filepath.Join(workDir, "same.egret"), content, 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, store, workDir, quietLogger(), events.record)
	time.Sleep(100 * time.Millisecond)

	// Same bytes again: the snapshot filters the event out.
	_ = os.WriteFile(filepath.Join(workDir, "same.egret"), content, 0o644)
	time.Sleep(300 * time.Millisecond)

	if events.has("updated:same.egret") || events.has("created:same.egret") {
		t.Errorf("events = %v, want none for identical rewrite", events.events)
	}
}
