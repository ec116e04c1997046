// Package models holds the Audit Sink's persisted shape: a best-effort,
// non-authoritative historical record of terminal jobs, per
// SPEC_FULL.md §4.9. The Job Store remains the sole authority for live
// state; this table exists only so a terminal job's outcome survives a
// restart for later inspection.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobAuditRecord is written once per job, the first time it reaches a
// terminal state (COMPLETED or DEAD). It is never updated afterward.
type JobAuditRecord struct {
	ID          uint      `gorm:"primaryKey"`
	JobID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Type        string    `gorm:"index;not null"`
	Status      string    `gorm:"index;not null"`
	Attempts    int       `gorm:"not null"`
	MaxAttempts int       `gorm:"not null"`
	Error       string
	CreatedAt   time.Time `gorm:"not null"`
	FinishedAt  time.Time `gorm:"not null"`
	RecordedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName pins the table name so a later rename of the Go type
// doesn't move the data.
func (JobAuditRecord) TableName() string {
	return "job_audit_records"
}
