package worker

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
)

// EmailAddrPattern is the one address format this service accepts,
// shared with the HTTP layer's request validation (spec.md §6) so a
// request that clears submission can never fail execution on an address
// the executor considers invalid. The executor re-checks it anyway
// since Payload is opaque to everything upstream of it.
var EmailAddrPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailExecutor is the SEND_EMAIL executor. It is a no-network
// stand-in: it validates the payload and simulates send latency rather
// than talking to an SMTP server, since the real mail transport is
// treated as an external collaborator (spec.md §1) and is out of this
// repository's scope. The shape mirrors a real executor closely enough
// that swapping in net/smtp later touches only this file.
type EmailExecutor struct {
	fromAddr string
	fromName string
	log      *logger.Logger
}

// NewEmailExecutor builds the SEND_EMAIL executor. fromAddr/fromName
// come from SMTP_FROM_EMAIL/SMTP_FROM_NAME configuration.
func NewEmailExecutor(fromAddr, fromName string, log *logger.Logger) *EmailExecutor {
	return &EmailExecutor{fromAddr: fromAddr, fromName: fromName, log: log}
}

// Execute validates the email payload and simulates a send.
func (e *EmailExecutor) Execute(ctx context.Context, job *queue.Job) (map[string]interface{}, error) {
	to, _ := job.Payload["to"].(string)
	subject, _ := job.Payload["subject"].(string)
	body, _ := job.Payload["body"].(string)

	if to == "" || !EmailAddrPattern.MatchString(to) {
		return nil, fmt.Errorf("invalid recipient address: %q", to)
	}
	if subject == "" {
		return nil, fmt.Errorf("email subject is required")
	}
	if body == "" {
		return nil, fmt.Errorf("email body is required")
	}

	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if e.log != nil {
		e.log.Info("email sent", "job_id", job.ID, "to", to, "subject", subject)
	}

	return map[string]interface{}{
		"to":      to,
		"from":    fmt.Sprintf("%s <%s>", e.fromName, e.fromAddr),
		"subject": subject,
		"sentAt":  time.Now().Format(time.RFC3339),
	}, nil
}
