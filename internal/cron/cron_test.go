package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxqueue/jobqueue/internal/queue"
)

func newTestManager(t *testing.T) *queue.Manager {
	t.Helper()
	store := queue.NewStore(100, 3)
	t.Cleanup(store.Close)
	bus := queue.NewBus(nil)
	return queue.NewManager(store, bus, time.Millisecond)
}

func TestCronScheduleRejectsInvalidSpec(t *testing.T) {
	c := New(newTestManager(t), nil)
	err := c.Schedule(ScheduleSpec{Name: "bad", CronSpec: "not a cron spec"})
	assert.Error(t, err)
}

func TestCronScheduleProducesJobsOnTick(t *testing.T) {
	manager := newTestManager(t)
	c := New(manager, nil)

	require.NoError(t, c.Schedule(ScheduleSpec{
		Name:        "every-second",
		CronSpec:    "* * * * * *",
		JobType:     queue.JobTypeSendEmail,
		MaxAttempts: 1,
	}))

	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		stats := manager.Stats()
		return stats.Total > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestCronRescheduleReplacesExistingEntry(t *testing.T) {
	c := New(newTestManager(t), nil)
	require.NoError(t, c.Schedule(ScheduleSpec{Name: "digest", CronSpec: "0 0 * * * *"}))
	require.NoError(t, c.Schedule(ScheduleSpec{Name: "digest", CronSpec: "0 30 * * * *"}))

	schedules := c.ListSchedules()
	require.Len(t, schedules, 1)
	assert.Equal(t, "0 30 * * * *", schedules[0].CronSpec)
}

func TestCronUnschedule(t *testing.T) {
	c := New(newTestManager(t), nil)
	require.NoError(t, c.Schedule(ScheduleSpec{Name: "digest", CronSpec: "0 0 * * * *"}))
	c.Unschedule("digest")
	assert.Empty(t, c.ListSchedules())
}

func TestCronStartStopIsIdempotent(t *testing.T) {
	c := New(newTestManager(t), nil)
	assert.NotPanics(t, func() {
		c.Start()
		c.Start()
		c.Stop()
		c.Stop()
	})
}
