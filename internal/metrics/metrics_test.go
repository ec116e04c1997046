package metrics

import (
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/fluxqueue/jobqueue/internal/queue"
)

// A single Registry is shared across subtests: promauto registers every
// collector against the global default registry, and constructing a
// second Registry in the same process would panic on duplicate
// registration.
func TestRegistry(t *testing.T) {
	r := NewRegistry()

	t.Run("counts lifecycle transitions by status", func(t *testing.T) {
		r.OnEvent(queue.Event{Topic: queue.TopicCreated})
		r.OnEvent(queue.Event{Topic: queue.TopicCreated})
		assert.Equal(t, float64(2), testutil.ToFloat64(r.jobsTotal.WithLabelValues("created")))
	})

	t.Run("observes job duration on completion", func(t *testing.T) {
		job := &queue.Job{ID: uuid.New(), Type: "SEND_EMAIL"}
		r.OnEvent(queue.Event{Topic: queue.TopicStarted, Job: job})
		r.OnEvent(queue.Event{Topic: queue.TopicCompleted, Job: job})

		count := testutil.CollectAndCount(r.jobDuration)
		assert.Greater(t, count, 0)
	})

	t.Run("unstarted job completion does not panic or record a duration", func(t *testing.T) {
		job := &queue.Job{ID: uuid.New(), Type: "UNSTARTED_TYPE"}
		before := testutil.CollectAndCount(r.jobDuration)
		assert.NotPanics(t, func() {
			r.OnEvent(queue.Event{Topic: queue.TopicCompleted, Job: job})
		})
		assert.Equal(t, before, testutil.CollectAndCount(r.jobDuration))
	})

	t.Run("SetQueueSize and SetPoolStats update gauges", func(t *testing.T) {
		r.SetQueueSize(5)
		r.SetPoolStats(4, 2)
		assert.Equal(t, float64(5), testutil.ToFloat64(r.queueSize))
		assert.Equal(t, float64(4), testutil.ToFloat64(r.workerPoolSize))
		assert.Equal(t, float64(2), testutil.ToFloat64(r.workerBusy))
	})

	t.Run("OnEvent never panics on a nil job", func(t *testing.T) {
		assert.NotPanics(t, func() {
			r.OnEvent(queue.Event{Topic: queue.TopicDead})
		})
	})
}
