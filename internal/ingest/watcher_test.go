package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/ingest"
)

func TestAccepts(t *testing.T) {
	w := ingest.New(t.TempDir(), []string{".docx", ".txt"}, nil)
	assert.True(t, w.Accepts("/x/notes.TXT"))
	assert.True(t, w.Accepts("plan.docx"))
	assert.False(t, w.Accepts("plan.pdf"))
	assert.False(t, w.Accepts("README"))
}

func TestWatcherProcessesSettledDocuments(t *testing.T) {
	dir := t.TempDir()
	got := make(chan string, 4)
	w := ingest.New(dir, []string{".txt"}, func(_ context.Context, path string) error {
		got <- path
		return errors.New("backend down")
	})
	w.Settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.pdf"), []byte("x"), 0o644))
	doc := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Task: build login"), 0o644))

	select {
	case path := <-got:
		assert.Equal(t, doc, path)
	case <-time.After(3 * time.Second):
		t.Fatal("document was not processed")
	}

	select {
	case path := <-got:
		t.Fatalf("unexpected second processing of %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherProcessesOneFileAtATime(t *testing.T) {
	dir := t.TempDir()
	var (
		mu        sync.Mutex
		running   int
		maxActive int
		processed []string
	)
	done := make(chan struct{}, 4)
	w := ingest.New(dir, []string{".txt"}, func(_ context.Context, path string) error {
		mu.Lock()
		running++
		maxActive = max(maxActive, running)
		mu.Unlock()

		time.Sleep(300 * time.Millisecond)

		mu.Lock()
		running--
		processed = append(processed, filepath.Base(path))
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	w.Settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Task: a"), 0o644))
	time.Sleep(time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("Task: b"), 0o644))

	for range 2 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("documents were not processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, processed)
}
