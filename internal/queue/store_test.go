package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(10, 3)
}

func TestStoreCreateAndGet(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	job, err := s.Create(JobTypeSendEmail, map[string]interface{}{"to": "a@b.com"}, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 3, job.MaxAttempts)

	fetched, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
}

func TestStoreCreateRespectsMaxAttemptsOverride(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	job, err := s.Create(JobTypeSendEmail, nil, CreateOptions{MaxAttempts: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, job.MaxAttempts)
}

func TestStoreCreateQueueFull(t *testing.T) {
	s := NewStore(1, 3)
	defer s.Close()

	_, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)

	_, err = s.Create(JobTypeSendEmail, nil, CreateOptions{})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestStoreGetNotFound(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	_, err := s.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreMarkStartedIncrementsAttemptsAndSetsStartedAtOnce(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	job, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)

	started, err := s.MarkStarted(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, started.Status)
	assert.Equal(t, 1, started.Attempts)
	require.NotNil(t, started.StartedAt)
	firstStart := *started.StartedAt

	_, err = s.MarkRetrying(job.ID, "boom", time.Now())
	require.NoError(t, err)

	startedAgain, err := s.MarkStarted(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, startedAgain.Attempts)
	assert.Equal(t, firstStart, *startedAgain.StartedAt, "StartedAt is set on first start only")
}

func TestStoreMarkStartedRejectsAlreadyRunning(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	job, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)
	_, err = s.MarkStarted(job.ID)
	require.NoError(t, err)

	_, err = s.MarkStarted(job.ID)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStoreMarkStartedRejectsTerminalJob(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	job, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)
	_, err = s.MarkStarted(job.ID)
	require.NoError(t, err)
	_, err = s.MarkCompleted(job.ID, nil)
	require.NoError(t, err)

	_, err = s.MarkStarted(job.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestStoreReadyForExecutionOrdersByCreatedAtFIFO(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	first, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)

	ready := s.ReadyForExecution()
	require.Len(t, ready, 2)
	assert.Equal(t, first.ID, ready[0].ID)
	assert.Equal(t, second.ID, ready[1].ID)
}

func TestStoreReadyForExecutionExcludesFutureRetries(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	job, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)
	_, err = s.MarkStarted(job.ID)
	require.NoError(t, err)
	_, err = s.MarkRetrying(job.ID, "boom", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Empty(t, s.ReadyForExecution())
}

func TestStoreStatsCountsBuckets(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	_, err := s.Create(JobTypeSendEmail, nil, CreateOptions{})
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[StatusPending])
}
