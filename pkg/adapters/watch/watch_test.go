package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cfg, err := newConfig([]Option{WithPattern("**/*.{csv,xlsx}"), WithIgnore("**/*_result.*")})
	require.NoError(t, err)

	assert.True(t, cfg.match("sites.csv"))
	assert.True(t, cfg.match("2024/sites.xlsx"))
	assert.False(t, cfg.match("sites.json"))
	assert.False(t, cfg.match("sites_result.csv"))
	assert.False(t, cfg.match(".hidden.csv"))
	assert.False(t, cfg.match("cpm-tmp-123.csv"))

	_, err = newConfig([]Option{WithPattern("[bad")})
	assert.Error(t, err)
}

func TestDebouncerCoalesces(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	var fired atomic.Int32
	var last atomic.Value
	for _, op := range []Op{OpCreate, OpWrite, OpWrite} {
		d.add(Event{Path: "a.csv", Op: op}, func(e Event) {
			fired.Add(1)
			last.Store(e.Op)
		})
	}
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, OpWrite, last.Load())

	d.add(Event{Path: "b.csv"}, func(Event) { fired.Add(1) })
	d.stopAndWait(time.Second)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "pending events are dropped on stop")
}

func TestWorkerReportsTables(t *testing.T) {
	dir := t.TempDir()
	events := make(chan Event, 8)
	w, err := NewWorker(dir, events, WithPattern("**/*.csv"), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, dir, w.State().Metadata["dir"])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sites.csv"), []byte("aadt\n1000\n"), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, filepath.Join(dir, "sites.csv"), e.Path)
		assert.Contains(t, e.String(), "sites.csv")
	case <-time.After(3 * time.Second):
		t.Fatal("no event for sites.csv")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.NoError(t, w.Stop(stopCtx))
	assert.Error(t, w.Start(ctx), "a stopped worker cannot be restarted")
}

func TestSource(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSource(dir, WithPattern("*.json"), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, src.Start(ctx))

	// the supervisor starts the watcher asynchronously
	path := filepath.Join(dir, "rows.json")
	var got Event
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("[]"), 0o644)
		select {
		case e := <-src.Events():
			got = e.(Event)
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, got.Path)

	cancel()
	assert.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-src.Events():
				if !ok {
					return true
				}
			case <-time.After(50 * time.Millisecond):
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}
