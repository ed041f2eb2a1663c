package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_ProgressClampAndMonotonic(t *testing.T) {
	n := newNotification(StateDownloading, nil)

	var seen []float64
	n.OnChange(func(_ NotificationState, progress float64) {
		seen = append(seen, progress)
	})

	n.SetProgress(-0.5) // clamped to 0, no change from the initial value
	n.SetProgress(0.5)
	n.SetProgress(0.3) // regressions are dropped
	n.SetProgress(1.7) // clamped to 1

	assert.Equal(t, []float64{0.5, 1}, seen)
	assert.Equal(t, 1.0, n.Progress())
}

func TestNotification_NoProgressAfterResolution(t *testing.T) {
	n := newNotification(StateDownloading, nil)
	n.setState(StateFailed)

	n.SetProgress(0.9)

	assert.Equal(t, 0.0, n.Progress())
	assert.Equal(t, StateFailed, n.State())
}

func TestNotification_CompletionPinsProgress(t *testing.T) {
	n := newNotification(StateDownloading, nil)
	n.SetProgress(0.4)
	n.setState(StateCompleted)

	assert.Equal(t, 1.0, n.Progress())
	assert.Equal(t, StateCompleted, n.State())
}

func TestNotification_Dismiss(t *testing.T) {
	n := newNotification(StateCompleted, nil)
	require.False(t, n.Dismissed())

	n.Dismiss()
	n.Dismiss()
	assert.True(t, n.Dismissed())
}

func TestNotification_ActivateWithoutAction(t *testing.T) {
	n := newNotification(StateCompleted, nil)
	n.Activate() // must not panic

	invoked := 0
	n = newNotification(StateCompleted, func() { invoked++ })
	n.Activate()
	assert.Equal(t, 1, invoked)
}

func TestNotificationState_String(t *testing.T) {
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", NotificationState(42).String())
}
