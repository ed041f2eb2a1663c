// Package updater keeps the running client up to date. It periodically asks
// a release source for a newer build, downloads it in the background without
// disrupting active gameplay and stages it so the client can restart into
// the new version.
package updater

import "context"

// Release describes a build discovered on the release source. It is created
// by the source, stays immutable and is held only for the duration of a
// single check/download cycle.
type Release struct {
	// Version is the version identifier of the discovered build.
	Version string
	// Artifact is a source-specific reference to the build, typically a URL.
	Artifact string
}

// ProgressFunc receives download progress in the source's native percent
// range (0..100). It may be invoked from any goroutine, zero or more times,
// with no ordering guarantee beyond the download eventually completing.
type ProgressFunc func(percent float64)

// ReleaseSource supplies release metadata and artifact bytes and owns the
// staged-update handoff. Errors from any method are treated uniformly as
// cycle failures by the scheduler.
type ReleaseSource interface {
	// QueryLatest returns the newest release that supersedes currentVersion
	// or nil when nothing newer is available.
	QueryLatest(ctx context.Context, currentVersion string) (*Release, error)

	// Fetch downloads and stages the given release, reporting progress as it
	// goes.
	Fetch(ctx context.Context, release *Release, progress ProgressFunc) error

	// ApplyStagedAndExit hands the staged update to the installer. The
	// process is expected to terminate shortly after.
	ApplyStagedAndExit(restart bool) error

	// IsApplyPending reports whether a previously staged update is still
	// waiting for a restart.
	IsApplyPending() bool
}

// GameplayGate reports whether the user is currently in an
// interruption-sensitive state. It is polled once at the start of each
// cycle, never mid-download.
type GameplayGate interface {
	IsInterruptionSensitive() bool
}

// GateFunc adapts a plain function to a GameplayGate.
type GateFunc func() bool

func (f GateFunc) IsInterruptionSensitive() bool {
	return f()
}

// Sink presents update notifications to the user. Post hands the visible
// record over to the presentation layer, which observes later state and
// progress mutations through the notification's change callback.
type Sink interface {
	Post(n *Notification)
}
