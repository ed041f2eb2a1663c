package updater

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mu           sync.Mutex
	queries      int
	applied      int
	release      *Release
	queryErr     error
	fetchErr     error
	applyErr     error
	applyPending bool
	fetchFn      func(ctx context.Context, release *Release, progress ProgressFunc) error
}

func (m *mockSource) QueryLatest(_ context.Context, _ string) (*Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	return m.release, m.queryErr
}

func (m *mockSource) Fetch(ctx context.Context, release *Release, progress ProgressFunc) error {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, release, progress)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchErr
}

func (m *mockSource) ApplyStagedAndExit(_ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied++
	return m.applyErr
}

func (m *mockSource) IsApplyPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyPending
}

func (m *mockSource) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func (m *mockSource) applyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

type sinkEvent struct {
	state    NotificationState
	progress float64
}

type recordingSink struct {
	mu         sync.Mutex
	notifGuard []*Notification
	events     []sinkEvent
}

func (s *recordingSink) Post(n *Notification) {
	state, progress := n.State(), n.Progress()
	s.mu.Lock()
	s.notifGuard = append(s.notifGuard, n)
	s.events = append(s.events, sinkEvent{state, progress})
	s.mu.Unlock()

	n.OnChange(func(state NotificationState, progress float64) {
		s.mu.Lock()
		s.events = append(s.events, sinkEvent{state, progress})
		s.mu.Unlock()
	})
}

func (s *recordingSink) posted() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.notifGuard...)
}

// progressSeq returns the distinct progress values the sink observed, in
// order.
func (s *recordingSink) progressSeq() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seq []float64
	for _, e := range s.events {
		if len(seq) == 0 || seq[len(seq)-1] != e.progress {
			seq = append(seq, e.progress)
		}
	}
	return seq
}

func neverSensitive() bool { return false }

func TestManager_GateBlocksCheck(t *testing.T) {
	source := &mockSource{}
	sink := &recordingSink{}
	var sessionOver atomic.Bool
	manager := NewManager(
		Config{CheckInterval: 10 * time.Millisecond, CurrentVersion: "1.0.0"},
		source, sink,
		GateFunc(func() bool { return !sessionOver.Load() }),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, source.queryCount(), "no query may be issued while the gate is closed")
	require.Empty(t, sink.posted())

	// Gated cycles keep rearming the standard interval, so ending the
	// session lets the next tick check again without intervention.
	sessionOver.Store(true)
	require.Eventually(t, func() bool {
		return source.queryCount() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestManager_NoUpdateStaysSilent(t *testing.T) {
	source := &mockSource{}
	sink := &recordingSink{}
	manager := NewManager(
		Config{CheckInterval: 10 * time.Millisecond, CurrentVersion: "1.0.0"},
		source, sink, GateFunc(neverSensitive),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	require.Eventually(t, func() bool {
		return source.queryCount() >= 3
	}, time.Second, 5*time.Millisecond)

	require.Empty(t, sink.posted())
	require.False(t, manager.PendingRestart())
}

func TestManager_QueryFailureIsSilent(t *testing.T) {
	source := &mockSource{queryErr: errors.New("no connectivity")}
	sink := &recordingSink{}
	manager := NewManager(
		Config{CheckInterval: 10 * time.Millisecond, CurrentVersion: "1.0.0"},
		source, sink, GateFunc(neverSensitive),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	require.Eventually(t, func() bool {
		return source.queryCount() >= 3
	}, time.Second, 5*time.Millisecond)

	require.Empty(t, sink.posted())
	require.False(t, manager.PendingRestart())
}

func TestManager_RepostsCompletionAfterDismissal(t *testing.T) {
	source := &mockSource{applyPending: true}
	sink := &recordingSink{}
	manager := NewManager(
		Config{CheckInterval: 10 * time.Millisecond, CurrentVersion: "1.0.0"},
		source, sink, GateFunc(neverSensitive),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	require.True(t, manager.PendingRestart(), "staged flag must be mirrored at startup")

	require.Eventually(t, func() bool {
		return len(sink.posted()) == 1
	}, time.Second, 5*time.Millisecond)
	first := sink.posted()[0]
	require.Equal(t, StateCompleted, first.State())
	require.Equal(t, 1.0, first.Progress())

	// a visible completion notice is not duplicated by later cycles
	seen := source.queryCount()
	require.Eventually(t, func() bool {
		return source.queryCount() >= seen+2
	}, time.Second, 5*time.Millisecond)
	require.Len(t, sink.posted(), 1)

	first.Dismiss()
	require.Eventually(t, func() bool {
		return len(sink.posted()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, StateCompleted, sink.posted()[1].State())
}

func TestManager_DownloadFailure(t *testing.T) {
	source := &mockSource{
		release:  &Release{Version: "2.0.0"},
		fetchErr: errors.New("connection reset"),
	}
	sink := &recordingSink{}
	manager := NewManager(
		Config{CheckInterval: 10 * time.Millisecond, CurrentVersion: "1.0.0"},
		source, sink, GateFunc(neverSensitive),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	// a failed download arms a recheck like "no update found"
	require.Eventually(t, func() bool {
		return source.queryCount() >= 2
	}, time.Second, 5*time.Millisecond)

	posted := sink.posted()
	require.NotEmpty(t, posted)
	require.Equal(t, StateFailed, posted[0].State())
	require.False(t, manager.PendingRestart())
	require.Zero(t, source.applyCount())
}

func TestManager_SuccessfulCycleStagesUpdate(t *testing.T) {
	exited := make(chan struct{}, 1)
	source := &mockSource{release: &Release{Version: "2.0.0"}}
	source.fetchFn = func(_ context.Context, _ *Release, progress ProgressFunc) error {
		for _, pct := range []float64{25, 60, 100} {
			progress(pct)
		}
		return nil
	}
	sink := &recordingSink{}
	manager := NewManager(
		Config{
			CheckInterval:  15 * time.Millisecond,
			CurrentVersion: "1.0.0",
			ExitFn:         func() { exited <- struct{}{} },
		},
		source, sink, GateFunc(neverSensitive),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	require.Eventually(t, func() bool {
		posted := sink.posted()
		return len(posted) == 1 && posted[0].State() == StateCompleted
	}, time.Second, 5*time.Millisecond)

	require.True(t, manager.PendingRestart())
	require.Equal(t, []float64{0, 0.25, 0.60, 1}, sink.progressSeq())

	// a completed cycle arms no recheck
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 1, source.queryCount())

	// the restart handoff happens exactly once however often the user clicks
	notification := sink.posted()[0]
	notification.Activate()
	notification.Activate()
	require.Equal(t, 1, source.applyCount())
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("expected an exit request after the staged update was applied")
	}
}

func TestManager_SingleCycleInFlight(t *testing.T) {
	releaseFetch := make(chan struct{})
	source := &mockSource{release: &Release{Version: "2.0.0"}}
	source.fetchFn = func(ctx context.Context, _ *Release, _ ProgressFunc) error {
		select {
		case <-releaseFetch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	sink := &recordingSink{}
	manager := NewManager(
		Config{CheckInterval: time.Hour, CurrentVersion: "1.0.0"},
		source, sink, GateFunc(neverSensitive),
	)

	manager.Start(context.Background())
	defer manager.Stop()

	require.Eventually(t, func() bool {
		return len(sink.posted()) == 1
	}, time.Second, 5*time.Millisecond)

	// activating a notification that is still downloading stages nothing
	downloading := sink.posted()[0]
	downloading.Activate()
	require.Zero(t, source.applyCount())

	// triggers while a cycle is in flight are dropped, not queued
	manager.CheckNow()
	manager.CheckNow()
	close(releaseFetch)

	require.Eventually(t, func() bool {
		return downloading.State() == StateCompleted
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, source.queryCount())

	downloading.Activate()
	require.Equal(t, 1, source.applyCount())
}

func TestManager_StartAndStopAreIdempotent(t *testing.T) {
	source := &mockSource{}
	manager := NewManager(
		Config{CheckInterval: time.Hour, CurrentVersion: "1.0.0"},
		source, &recordingSink{}, GateFunc(neverSensitive),
	)

	ctx := context.Background()
	manager.Start(ctx)
	manager.Start(ctx)

	require.Eventually(t, func() bool {
		return source.queryCount() == 1
	}, time.Second, 5*time.Millisecond)

	manager.Stop()
	manager.Stop()
}
