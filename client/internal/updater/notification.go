package updater

import (
	"sync"

	"github.com/google/uuid"
)

// NotificationState is the user-visible state of an update notification.
type NotificationState int

const (
	StateDownloading NotificationState = iota
	StateCompleted
	StateFailed
)

func (s NotificationState) String() string {
	switch s {
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChangeFunc observes visible mutations of a notification. It is invoked
// with the new state and progress while the notification's lock is held, so
// observers see changes in order. Implementations must not call back into
// the notification.
type ChangeFunc func(state NotificationState, progress float64)

// Notification is the user-visible record of one update cycle. The scheduler
// owns it exclusively once created; its lifetime spans from the first
// progress event to user dismissal or process exit.
type Notification struct {
	id string

	mu        sync.Mutex
	state     NotificationState
	progress  float64
	dismissed bool
	onChange  ChangeFunc

	onActivate func()
}

func newNotification(state NotificationState, onActivate func()) *Notification {
	n := &Notification{
		id:         uuid.NewString(),
		state:      state,
		onActivate: onActivate,
	}
	if state == StateCompleted {
		n.progress = 1
	}
	return n
}

func (n *Notification) ID() string {
	return n.id
}

func (n *Notification) State() NotificationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Notification) Progress() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.progress
}

// OnChange registers the observer used by the presentation layer. Only one
// observer is supported, registered by the sink when the notification is
// posted.
func (n *Notification) OnChange(fn ChangeFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = fn
}

// SetProgress updates the download progress. Values are clamped into [0,1]
// and never move backwards within a single download; updates after the
// download resolved are dropped.
func (n *Notification) SetProgress(v float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateDownloading {
		return
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	if v <= n.progress {
		return
	}

	n.progress = v
	if n.onChange != nil {
		n.onChange(n.state, n.progress)
	}
}

func (n *Notification) setState(state NotificationState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == state {
		return
	}
	n.state = state
	if state == StateCompleted {
		n.progress = 1
	}
	if n.onChange != nil {
		n.onChange(n.state, n.progress)
	}
}

// Dismiss marks the notification as no longer visible. Dismissal is one-way;
// a dismissed completion notice is replaced by a fresh one on the next cycle
// that finds the update still pending.
func (n *Notification) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dismissed = true
}

func (n *Notification) Dismissed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dismissed
}

// Activate runs the notification's activation action, e.g. "restart now" on
// a completed update. The scheduler keeps the action idempotent, so repeated
// activations are safe.
func (n *Notification) Activate() {
	n.mu.Lock()
	fn := n.onActivate
	n.mu.Unlock()

	if fn != nil {
		fn()
	}
}
