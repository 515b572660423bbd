package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("upload:bank-tbc")

	rec, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "upload:bank-tbc", rec.Source)
	assert.Nil(t, rec.StartedAt)

	require.True(t, reg.MarkRunning(id))
	reg.SetProgress(id, "loading payments", 30)

	rec, _ = reg.Get(id)
	assert.Equal(t, StatusRunning, rec.Status)
	assert.Equal(t, "loading payments", rec.CurrentStep)
	assert.Equal(t, 30, rec.ProgressPercent)
	require.NotNil(t, rec.StartedAt)

	require.True(t, reg.Complete(id, Result{TotalCustomers: 7, NewCount: 7}))
	rec, _ = reg.Get(id)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.ProgressPercent)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 7, rec.Result.TotalCustomers)
	require.NotNil(t, rec.CompletedAt)
}

func TestRegistry_GuardedTransitions(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("manual")

	assert.False(t, reg.Complete(id, Result{}), "PENDING cannot complete")
	assert.False(t, reg.Fail(id, "x"), "PENDING cannot fail")

	require.True(t, reg.MarkRunning(id))
	assert.False(t, reg.MarkRunning(id), "double claim rejected")

	require.True(t, reg.Fail(id, "provider down"))
	assert.False(t, reg.Complete(id, Result{}), "terminal state is final")
	assert.False(t, reg.MarkRunning(id))

	rec, _ := reg.Get(id)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "provider down", rec.ErrorMessage)
	assert.Nil(t, rec.Result)
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("nope")
	assert.False(t, ok)
	assert.False(t, reg.MarkRunning("nope"))
}

func TestRegistry_EvictsOldTerminalRecords(t *testing.T) {
	reg := NewRegistry()
	current := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return current }

	var old []string
	for i := 0; i < evictThreshold; i++ {
		id := reg.Create("bulk")
		reg.MarkRunning(id)
		reg.Complete(id, Result{})
		old = append(old, id)
	}
	stillRunning := reg.Create("live")
	reg.MarkRunning(stillRunning)

	// Past retention, the next Create sweeps the terminal backlog.
	current = current.Add(retention + time.Hour)
	fresh := reg.Create("fresh")

	_, ok := reg.Get(old[0])
	assert.False(t, ok, "expired terminal record dropped")
	_, ok = reg.Get(stillRunning)
	assert.True(t, ok, "live job survives eviction")
	_, ok = reg.Get(fresh)
	assert.True(t, ok)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
