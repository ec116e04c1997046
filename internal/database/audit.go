package database

import (
	"gorm.io/gorm"

	"github.com/fluxqueue/jobqueue/internal/database/models"
	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
)

// AuditSink is an Event Bus listener that writes a row for every job
// that reaches a terminal state. It is best-effort and non-authoritative
// (SPEC_FULL.md §4.9): a write failure, or the database being entirely
// unavailable, never affects the in-memory Job Store or the HTTP API —
// it is only ever logged.
type AuditSink struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewAuditSink builds an Audit Sink over an already-migrated db.
func NewAuditSink(db *gorm.DB, log *logger.Logger) *AuditSink {
	return &AuditSink{db: db, log: log}
}

// OnEvent implements queue.Listener.
func (a *AuditSink) OnEvent(ev queue.Event) {
	if ev.Topic != queue.TopicCompleted && ev.Topic != queue.TopicDead {
		return
	}
	if ev.Job == nil {
		return
	}

	record := models.JobAuditRecord{
		JobID:       ev.Job.ID,
		Type:        ev.Job.Type,
		Status:      string(ev.Job.Status),
		Attempts:    ev.Job.Attempts,
		MaxAttempts: ev.Job.MaxAttempts,
		Error:       ev.Job.Error,
		CreatedAt:   ev.Job.CreatedAt,
	}
	if ev.Job.FinishedAt != nil {
		record.FinishedAt = *ev.Job.FinishedAt
	}

	if err := a.db.Create(&record).Error; err != nil && a.log != nil {
		a.log.Warn("audit sink write failed", "job_id", ev.Job.ID, "error", err)
	}
}
