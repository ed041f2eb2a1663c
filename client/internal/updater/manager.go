package updater

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/caesay/osu/version"
)

// DefaultCheckInterval is the steady-state pause between update checks.
// Failed downloads reschedule at the same interval as "nothing new found".
const DefaultCheckInterval = 30 * time.Minute

// Config carries the scheduler settings.
type Config struct {
	// CheckInterval is the pause between checks. Zero means
	// DefaultCheckInterval.
	CheckInterval time.Duration
	// CurrentVersion overrides the build-time client version, used by tests.
	CurrentVersion string
	// ExitFn requests an orderly shutdown of the host application after the
	// staged update has been handed to the installer.
	ExitFn func()
}

// Manager drives the update lifecycle of the running client: check the
// release source, download in the background, stage for the next restart.
// At most one cycle is in flight and at most one notification is live at
// any time.
type Manager struct {
	interval       time.Duration
	currentVersion string
	source         ReleaseSource
	sink           Sink
	gate           GameplayGate
	exitFn         func()

	checkCh chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu             sync.Mutex
	checking       bool
	pendingRestart bool
	applying       bool
	notification   *Notification
}

func NewManager(cfg Config, source ReleaseSource, sink Sink, gate GameplayGate) *Manager {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.CurrentVersion == "" {
		cfg.CurrentVersion = version.ClientVersion()
	}
	return &Manager{
		interval:       cfg.CheckInterval,
		currentVersion: cfg.CurrentVersion,
		source:         source,
		sink:           sink,
		gate:           gate,
		exitFn:         cfg.ExitFn,
		checkCh:        make(chan struct{}, 1),
	}
}

// Start launches the background scheduling loop and performs an immediate
// startup check. A second Start is a no-op.
func (m *Manager) Start(ctx context.Context) {
	if m.cancel != nil {
		log.Errorf("update manager already started")
		return
	}

	if m.source.IsApplyPending() {
		m.mu.Lock()
		m.pendingRestart = true
		m.mu.Unlock()
		log.Infof("a previously staged update is waiting for a restart")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx)
}

// Stop cancels the scheduling loop and waits for an in-flight cycle to wind
// down. Safe to call more than once.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
}

// CheckNow requests an immediate check, e.g. from a settings action. The
// request is dropped when a cycle is already in flight.
func (m *Manager) CheckNow() {
	m.mu.Lock()
	busy := m.checking
	m.mu.Unlock()
	if busy {
		return
	}

	select {
	case m.checkCh <- struct{}{}:
	default:
	}
}

// PendingRestart reports whether a staged update is waiting for the client
// to restart. It is never cleared in-process.
func (m *Manager) PendingRestart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingRestart
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	// Fire the startup check right away.
	timer := time.NewTimer(0)
	defer timer.Stop()
	armed := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			armed = false
		case <-m.checkCh:
			if armed && !timer.Stop() {
				<-timer.C
			}
			armed = false
		}

		if m.runCycle(ctx) {
			timer.Reset(m.interval)
			armed = true
		}
	}
}

// runCycle performs one complete check and, when a release is found, download
// attempt. The return value reports whether another check should be armed;
// it is accumulated in a single place so no cycle can arm the recheck timer
// more than once.
func (m *Manager) runCycle(ctx context.Context) (recheck bool) {
	m.mu.Lock()
	m.checking = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.checking = false
		m.mu.Unlock()
	}()

	recheck = true

	if m.gate.IsInterruptionSensitive() {
		log.Debugf("skipping update check, client is in an interruption-sensitive state")
		return recheck
	}

	release, err := m.source.QueryLatest(ctx, m.currentVersion)
	if err != nil {
		// Transient connectivity noise. No notification, retry on the next
		// tick.
		log.Errorf("update check failed: %v", err)
		return recheck
	}

	if release == nil {
		m.repostCompletionIfPending()
		return recheck
	}

	log.Infof("update available: %s -> %s", m.currentVersion, release.Version)

	n := newNotification(StateDownloading, m.restartToApply)
	m.publish(n)

	err = m.source.Fetch(ctx, release, func(percent float64) {
		n.SetProgress(percent / 100)
	})
	if err != nil {
		log.Errorf("failed to download release %s: %v", release.Version, err)
		n.setState(StateFailed)
		return recheck
	}

	// The staged flag must be up before the notification reads as completed,
	// otherwise an activation racing the transition would be dropped.
	m.mu.Lock()
	m.pendingRestart = true
	m.mu.Unlock()
	n.setState(StateCompleted)
	log.Infof("release %s staged, waiting for restart", release.Version)

	// Cycle complete. Nothing left to poll for until the user restarts.
	recheck = false
	return recheck
}

// repostCompletionIfPending covers the user dismissing the completion notice:
// when an update is still staged and no completion notice is visible, show it
// again so the restart offer is not lost.
func (m *Manager) repostCompletionIfPending() {
	m.mu.Lock()
	pending := m.pendingRestart
	current := m.notification
	m.mu.Unlock()

	if !pending {
		return
	}
	if current != nil && current.State() == StateCompleted && !current.Dismissed() {
		return
	}

	m.publish(newNotification(StateCompleted, m.restartToApply))
}

func (m *Manager) publish(n *Notification) {
	m.mu.Lock()
	m.notification = n
	m.mu.Unlock()
	m.sink.Post(n)
}

// restartToApply hands the staged update to the installer and requests an
// orderly application exit. Repeated activations reach the installer at most
// once; readiness is not verified beyond pendingRestart.
func (m *Manager) restartToApply() {
	m.mu.Lock()
	if !m.pendingRestart || m.applying {
		m.mu.Unlock()
		return
	}
	m.applying = true
	m.mu.Unlock()

	if err := m.source.ApplyStagedAndExit(true); err != nil {
		log.Errorf("failed to apply staged update: %v", err)
		m.mu.Lock()
		m.applying = false
		m.mu.Unlock()
		return
	}

	if m.exitFn != nil {
		m.exitFn()
	}
}
