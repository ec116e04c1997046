package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluxqueue/jobqueue/internal/queue"
)

func TestMonitorOnEventIncrementsMatchingCounter(t *testing.T) {
	m := NewMonitor("1.0.0", nil, nil, nil, nil, nil)

	m.OnEvent(queue.Event{Topic: queue.TopicCreated})
	m.OnEvent(queue.Event{Topic: queue.TopicCreated})
	m.OnEvent(queue.Event{Topic: queue.TopicCompleted})
	m.OnEvent(queue.Event{Topic: queue.TopicDead})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Counters.Created)
	assert.Equal(t, int64(1), snap.Counters.Completed)
	assert.Equal(t, int64(1), snap.Counters.Dead)
	assert.Equal(t, int64(0), snap.Counters.Failed)
}

func TestMonitorOnEventUnknownTopicIgnored(t *testing.T) {
	m := NewMonitor("1.0.0", nil, nil, nil, nil, nil)
	assert.NotPanics(t, func() {
		m.OnEvent(queue.Event{Topic: queue.Topic("unknown")})
	})
}

func TestMonitorSnapshotOmitsNilComponents(t *testing.T) {
	m := NewMonitor("1.0.0", nil, nil, nil, nil, nil)
	snap := m.Snapshot()
	assert.Equal(t, "1.0.0", snap.Version)
	assert.Equal(t, 0, snap.QueueStats.Total)
	assert.False(t, snap.SchedulerRun)
}

func TestMonitorSnapshotIncludesQueueStatsWhenManagerSet(t *testing.T) {
	store := queue.NewStore(10, 3)
	defer store.Close()
	bus := queue.NewBus(nil)
	manager := queue.NewManager(store, bus, 0)
	_, err := manager.CreateJob(queue.JobTypeSendEmail, nil, queue.CreateOptions{})
	assert.NoError(t, err)

	m := NewMonitor("1.0.0", manager, nil, nil, nil, nil)
	snap := m.Snapshot()
	assert.Equal(t, 1, snap.QueueStats.Total)
}
