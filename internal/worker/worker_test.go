package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/queue"
)

type fakeSender struct {
	err  error
	sent []queue.EmailPayload
}

func (s *fakeSender) Send(_ context.Context, p queue.EmailPayload) error {
	s.sent = append(s.sent, p)
	return s.err
}

type memLog struct {
	mu      sync.Mutex
	entries []*models.EmailLog
}

func (l *memLog) Record(_ context.Context, el *models.EmailLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, el)
	return nil
}

func (l *memLog) all() []*models.EmailLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*models.EmailLog(nil), l.entries...)
}

type chanSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (s *chanSource) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-s.jobs:
		return j, nil
	}
}

func (s *chanSource) Retry(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried = append(s.retried, job)
	return nil
}

func (s *chanSource) retryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retried)
}

func resetJob(t *testing.T) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypePasswordReset, queue.EmailPayload{
		RecipientEmail: "ana@example.com",
		RecipientName:  "Ana",
		Subject:        "Reset your password",
		Body:           "Reset code: abc",
	})
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name       string
		sender     Sender
		wantErr    bool
		wantStatus string
	}{
		{"sent", &fakeSender{}, false, models.EmailStatusSent},
		{"failed", &fakeSender{err: errors.New("relay down")}, true, models.EmailStatusFailed},
		{"logged", NewLogSender(zap.NewNop()), false, models.EmailStatusLogged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &memLog{}
			p := NewMailProcessor(nil, tt.sender, logs, nil)
			err := p.Process(context.Background(), resetJob(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Process err = %v, wantErr %v", err, tt.wantErr)
			}
			entries := logs.all()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", entries[0].Status, tt.wantStatus)
			}
			if entries[0].RecipientEmail != "ana@example.com" {
				t.Errorf("recipient = %q", entries[0].RecipientEmail)
			}
		})
	}
}

func TestProcessRejectsUnknownType(t *testing.T) {
	job, _ := queue.NewJob("unknown", queue.EmailPayload{RecipientEmail: "a@b.c"})
	p := NewMailProcessor(nil, &fakeSender{}, nil, nil)
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestRunRetriesFailedJobs(t *testing.T) {
	src := &chanSource{jobs: make(chan *queue.Job, 2)}
	src.jobs <- resetJob(t)
	p := NewMailProcessor(src, &fakeSender{err: errors.New("boom")}, nil, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for src.retryCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("job was not retried")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("Teamfaces", "noreply@example.com", queue.EmailPayload{
		RecipientEmail: "ana@example.com",
		Subject:        "Reset your password",
		Body:           "line one\nline two",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	for _, want := range []string{
		"From: \"Teamfaces\" <noreply@example.com>\r\n",
		"To: <ana@example.com>\r\n",
		"Subject: Reset your password\r\n",
		"line one\r\nline two",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
