package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/onboarding"
	"github.com/teamfaces/teamfaces/internal/presence"
	"github.com/teamfaces/teamfaces/internal/realtime"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/queue"
	"github.com/teamfaces/teamfaces/pkg/storage"
)

// Outbox records queued mail instead of sending it.
type Outbox struct {
	mu   sync.Mutex
	mail []queue.EmailPayload
}

func (o *Outbox) EnqueueEmail(_ context.Context, _ queue.JobType, p queue.EmailPayload) error {
	o.mu.Lock()
	o.mail = append(o.mail, p)
	o.mu.Unlock()
	return nil
}

// Mail returns everything queued so far.
func (o *Outbox) Mail() []queue.EmailPayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]queue.EmailPayload(nil), o.mail...)
}

// Memory is a single-process deployment with no Postgres, Redis or S3.
type Memory struct {
	Deps
	Outbox  *Outbox
	Objects *storage.Memory
}

// NewMemory wires every service on in-memory stores.
func NewMemory(jwtSecret string, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	outbox := &Outbox{}
	objects := storage.NewMemory()
	repo := team.NewRepository(team.NewMemoryStore(), team.NewLocalNotifier(), team.Config{}, logger)
	tokens := auth.NewMemoryTokens()
	authSvc := auth.NewService(auth.NewMemoryUserStore(), auth.NewJWTService(jwtSecret, 24), tokens, tokens,
		outbox, auth.Config{AppURL: "http://localhost:3000"}, logger).WithRoles(repo)
	editor := presence.NewEditor(repo, authSvc, objects, 0, logger)
	return &Memory{
		Deps: Deps{
			Team:          repo,
			Auth:          authSvc,
			Editor:        editor,
			Onboarding:    onboarding.NewService(repo, authSvc, editor, logger),
			Hub:           realtime.NewHub(logger),
			ActivityLimit: 5,
			CORSOrigins:   "*",
			Logger:        logger,
		},
		Outbox:  outbox,
		Objects: objects,
	}
}
