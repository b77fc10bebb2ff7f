package app

import (
	"context"
	"log"
	"sync"
	"time"

	"exam-delivery-service/internal/domain"
	"github.com/google/uuid"
)

const auditWriteTimeout = 5 * time.Second

// AuditSink records administrative actions in the background. Failures are
// logged and never reach the caller.
type AuditSink struct {
	repo AuditRepository
	now  func() time.Time
	wg   sync.WaitGroup
}

func NewAuditSink(repo AuditRepository) *AuditSink {
	return &AuditSink{repo: repo, now: time.Now}
}

// Record queues one entry and returns immediately.
func (a *AuditSink) Record(actor, action, details string) {
	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: a.now(),
		Actor:     actor,
		Action:    action,
		Details:   details,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()
		if err := a.repo.AppendAudit(ctx, entry); err != nil {
			log.Printf("audit %s dropped: %v", action, err)
		}
	}()
}

// Wait blocks until queued entries are written. Used on shutdown and in tests.
func (a *AuditSink) Wait() {
	a.wg.Wait()
}
