package database

import (
	"gorm.io/gorm"

	"github.com/fluxqueue/jobqueue/internal/database/models"
)

// Migrate auto-migrates the Audit Sink's schema. It is the only
// persisted schema in this service — the Job Store itself is never
// backed by a table (spec.md's memory-resident non-goal).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.JobAuditRecord{})
}
