package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/queue"
)

// JobSource hands out jobs and takes failed ones back. *queue.Queue satisfies it.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// DeliveryLog records delivery attempts. *emaillogs.Repository satisfies it.
type DeliveryLog interface {
	Record(ctx context.Context, el *models.EmailLog) error
}

// MailProcessor delivers queued mail jobs.
type MailProcessor struct {
	jobs    JobSource
	sender  Sender
	logs    DeliveryLog
	backoff time.Duration
	logger  *zap.Logger
}

// NewMailProcessor creates a mail processor. logs may be nil.
func NewMailProcessor(jobs JobSource, sender Sender, logs DeliveryLog, logger *zap.Logger) *MailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailProcessor{jobs: jobs, sender: sender, logs: logs, backoff: queue.RetryBackoff, logger: logger}
}

// Process delivers one mail job.
func (p *MailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePasswordReset {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		return fmt.Errorf("job %s has no recipient", job.ID)
	}

	entry := &models.EmailLog{
		JobID:          job.ID,
		EmailType:      string(job.Type),
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Attempt:        job.Attempt,
	}
	err := p.sender.Send(ctx, payload)
	if err != nil {
		entry.Status = models.EmailStatusFailed
		entry.ErrorMessage = err.Error()
	} else {
		now := time.Now()
		entry.SentAt = &now
		entry.Status = models.EmailStatusSent
		if _, ok := p.sender.(*LogSender); ok {
			entry.Status = models.EmailStatusLogged
		}
	}
	p.record(ctx, entry)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	p.logger.Info("email delivered", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

func (p *MailProcessor) record(ctx context.Context, el *models.EmailLog) {
	if p.logs == nil {
		return
	}
	if err := p.logs.Record(ctx, el); err != nil {
		p.logger.Warn("record email log failed", zap.String("job_id", el.JobID), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *MailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("mail worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *MailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
