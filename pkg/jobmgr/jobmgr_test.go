package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportLog struct {
	mu     sync.Mutex
	events []string
}

func (r *reportLog) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *reportLog) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never met")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartAsyncLifecycle(t *testing.T) {
	rep := &reportLog{}
	m := NewManager(rep.record)

	done := make(chan struct{})
	require.NoError(t, m.StartAsync("tick", func(ctx context.Context) error {
		<-done
		return nil
	}))

	waitFor(t, func() bool { return len(rep.snapshot()) >= 1 })
	assert.Equal(t, []string{"tick"}, m.List())

	close(done)
	waitFor(t, func() bool { return len(m.List()) == 0 })
	assert.Equal(t, []string{"running:tick", "done:tick"}, rep.snapshot())
}

func TestStartAsyncRejectsDuplicateName(t *testing.T) {
	m := NewManager(nil)

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, m.StartAsync("tick", func(ctx context.Context) error {
		<-block
		return nil
	}))

	err := m.StartAsync("tick", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestStartAsyncReportsJobError(t *testing.T) {
	rep := &reportLog{}
	m := NewManager(rep.record)

	require.NoError(t, m.StartAsync("broken", func(ctx context.Context) error {
		return errors.New("boom")
	}))

	waitFor(t, func() bool { return len(rep.snapshot()) == 2 })
	assert.Equal(t, "error:broken:boom", rep.snapshot()[1])
}

func TestStopCancelsJobContext(t *testing.T) {
	m := NewManager(nil)

	canceled := make(chan struct{})
	require.NoError(t, m.StartAsync("loop", func(ctx context.Context) error {
		<-ctx.Done()
		close(canceled)
		return nil
	}))

	require.NoError(t, m.Stop("loop"))
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("job context was never canceled")
	}

	assert.Error(t, m.Stop("loop"), "stopping a stopped job errors")
}

func TestStopAll(t *testing.T) {
	m := NewManager(nil)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		wg.Add(1)
		require.NoError(t, m.StartAsync(name, func(ctx context.Context) error {
			defer wg.Done()
			<-ctx.Done()
			return nil
		}))
	}

	m.StopAll()
	wg.Wait()
	assert.Empty(t, m.List())
}
