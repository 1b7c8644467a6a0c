package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/queue"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []queue.EmailPayload
}

func (m *recordingMailer) EnqueueEmail(_ context.Context, _ queue.JobType, p queue.EmailPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingMailer) {
	t.Helper()
	mailer := &recordingMailer{}
	tokens := NewMemoryTokens()
	svc := NewService(NewMemoryUserStore(), NewJWTService("test-secret", 1), tokens, tokens, mailer,
		Config{ResetTTL: time.Hour, AppURL: "https://faces.example.com/"}, nil)
	return svc, mailer
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "  Ada@Example.com ", "secret1", Profile{Name: "Ada"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.Identity.Email != "ada@example.com" || sess.Identity.Role != models.RoleMember {
		t.Errorf("identity = %+v", sess.Identity)
	}
	if sess.Token == "" {
		t.Fatal("empty token")
	}

	if _, err := svc.Authenticate(ctx, "ADA@example.com", "secret1"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ada@example.com", "wrong!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"bad email", "not-an-email", "secret1", ErrInvalidEmail},
		{"short password", "a@example.com", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.email, tt.password, Profile{}); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	svc.Register(ctx, "dup@example.com", "secret1", Profile{})
	if _, err := svc.Register(ctx, "DUP@example.com", "secret1", Profile{}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate: got %v, want ErrEmailTaken", err)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.Register(ctx, "ada@example.com", "secret1", Profile{Role: models.RoleAdmin})

	claims, err := svc.Verify(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("role claim = %q", claims.Role)
	}
	if err := svc.SignOut(ctx, claims); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.Verify(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify after sign out: got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	svc.Register(ctx, "ada@example.com", "secret1", Profile{Name: "Ada"})

	if err := svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("mail sent for unknown email")
	}

	if err := svc.RequestPasswordReset(ctx, "ada@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(mailer.sent))
	}
	body := mailer.sent[0].Body
	i := strings.Index(body, "token=")
	if i < 0 || !strings.Contains(body, "https://faces.example.com/reset-password") {
		t.Fatalf("reset link missing from body: %q", body)
	}
	token := strings.Fields(body[i+len("token="):])[0]

	if err := svc.ResetPassword(ctx, token, "newsecret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "another1"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("reuse of token: got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ada@example.com", "newsecret"); err != nil {
		t.Fatalf("Authenticate with new password: %v", err)
	}
}

func TestUpdateProfileAndRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.Register(ctx, "ada@example.com", "secret1", Profile{Name: "Ada"})

	name, photo := " Ada L. ", "https://cdn.example.com/a.png"
	ident, err := svc.UpdateProfile(ctx, sess.Identity.ID, ProfileFields{Name: &name, PhotoURL: &photo})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if ident.Name != "Ada L." || ident.PhotoURL != photo || ident.Email != "ada@example.com" {
		t.Errorf("identity = %+v", ident)
	}

	if err := svc.Remove(ctx, sess.Identity.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.Me(ctx, sess.Identity.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Me after Remove: got %v", err)
	}
}
