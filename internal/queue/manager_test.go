package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, backoffBase time.Duration) (*Manager, *Store) {
	t.Helper()
	store := NewStore(10, 3)
	bus := NewBus(nil)
	t.Cleanup(store.Close)
	return NewManager(store, bus, backoffBase), store
}

func TestManagerCreateStartCompleteHappyPath(t *testing.T) {
	m, _ := newTestManager(t, time.Millisecond)

	job, err := m.CreateJob(JobTypeSendEmail, map[string]interface{}{"to": "a@b.com"}, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	started, err := m.StartJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, started.Status)

	completed, err := m.CompleteJob(job.ID, map[string]interface{}{"ok": true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.True(t, completed.Terminal())
}

func TestManagerFailJobRetriesWhileAttemptsRemain(t *testing.T) {
	m, _ := newTestManager(t, time.Millisecond)

	job, err := m.CreateJob(JobTypeSendEmail, nil, CreateOptions{MaxAttempts: 2})
	require.NoError(t, err)
	_, err = m.StartJob(job.ID)
	require.NoError(t, err)

	failed, err := m.FailJob(job.ID, "smtp timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusRetrying, failed.Status)
	assert.Equal(t, "smtp timeout", failed.Error)
	require.NotNil(t, failed.RetryAt)
}

func TestManagerFailJobDiesWhenAttemptsExhausted(t *testing.T) {
	m, _ := newTestManager(t, time.Millisecond)

	job, err := m.CreateJob(JobTypeSendEmail, nil, CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)
	_, err = m.StartJob(job.ID)
	require.NoError(t, err)

	dead, err := m.FailJob(job.ID, "smtp timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusDead, dead.Status)
	assert.True(t, dead.Terminal())
}

func TestManagerFailJobPublishesFailedBeforeRetryingOrDead(t *testing.T) {
	store := NewStore(10, 3)
	defer store.Close()
	bus := NewBus(nil)
	m := NewManager(store, bus, time.Millisecond)

	var topics []Topic
	bus.AddListener(ListenerFunc(func(ev Event) {
		topics = append(topics, ev.Topic)
	}))

	job, err := m.CreateJob(JobTypeSendEmail, nil, CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)
	_, err = m.StartJob(job.ID)
	require.NoError(t, err)
	_, err = m.FailJob(job.ID, "boom")
	require.NoError(t, err)

	require.Len(t, topics, 4)
	assert.Equal(t, TopicCreated, topics[0])
	assert.Equal(t, TopicStarted, topics[1])
	assert.Equal(t, TopicFailed, topics[2])
	assert.Equal(t, TopicDead, topics[3])
}

func TestManagerRetryDelayDoublesPerAttempt(t *testing.T) {
	m, _ := newTestManager(t, 100*time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, m.retryDelay(1))
	assert.Equal(t, 200*time.Millisecond, m.retryDelay(2))
	assert.Equal(t, 400*time.Millisecond, m.retryDelay(3))
}

func TestParseUUIDWrapsErrNotFound(t *testing.T) {
	_, err := ParseUUID("not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}
