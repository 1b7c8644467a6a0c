package presence

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/queue"
)

type fakeUploader struct {
	mu      sync.Mutex
	fail    bool
	keys    []string
	deleted []string
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	io.Copy(io.Discard, body)
	u.keys = append(u.keys, key)
	return "https://cdn.test/" + key, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	u.deleted = append(u.deleted, key)
	u.mu.Unlock()
	return nil
}

type nopMailer struct{}

func (nopMailer) EnqueueEmail(context.Context, queue.JobType, queue.EmailPayload) error { return nil }

type fixture struct {
	editor   *Editor
	repo     *team.Repository
	uploader *fakeUploader
	ident    models.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := team.NewRepository(team.NewMemoryStore(), team.NewLocalNotifier(), team.Config{Now: func() time.Time { return now }}, nil)
	tokens := auth.NewMemoryTokens()
	authSvc := auth.NewService(auth.NewMemoryUserStore(), auth.NewJWTService("s", 1), tokens, tokens, nopMailer{}, auth.Config{}, nil)
	sess, err := authSvc.Register(ctx, "ada@example.com", "secret1", auth.Profile{Name: "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	up := &fakeUploader{}
	return &fixture{
		editor:   NewEditor(repo, authSvc, up, 1<<20, nil),
		repo:     repo,
		uploader: up,
		ident:    sess.Identity,
	}
}

func png(size int64) *Image {
	return &Image{Filename: "me.PNG", ContentType: "image/png", Size: size, Body: strings.NewReader("img")}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		sub   Submission
		field string
	}{
		{"blank name", Submission{Name: "   ", Status: "busy"}, "name"},
		{"unknown status", Submission{Name: "Ada", Status: "napping"}, "status"},
		{"missing status", Submission{Name: "Ada"}, "status"},
		{"not an image", Submission{Name: "Ada", Status: "busy", Photo: &Image{Filename: "cv.pdf", ContentType: "application/pdf"}}, "photo"},
		{"too large", Submission{Name: "Ada", Status: "busy", Photo: png(2 << 20)}, "photo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.editor.Submit(context.Background(), f.ident, tt.sub)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("got %v, want validation error on %q", err, tt.field)
			}
		})
	}
	if len(f.uploader.keys) != 0 {
		t.Errorf("uploads happened despite validation failure: %v", f.uploader.keys)
	}
}

func TestSubmitWithPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.editor.Submit(ctx, f.ident, Submission{
		Name: " Ada L. ", Status: "meeting", StatusMessage: " standup ", Schedule: "9-5", Photo: png(10),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(f.uploader.keys) != 1 || !strings.HasPrefix(f.uploader.keys[0], "users/"+f.ident.ID.String()+"/avatar/") ||
		!strings.HasSuffix(f.uploader.keys[0], ".png") {
		t.Fatalf("upload keys = %v", f.uploader.keys)
	}
	m := res.Member
	if m.Name != "Ada L." || m.Status != models.StatusMeeting || m.StatusMessage != "standup" ||
		m.Email != "ada@example.com" || m.PhotoURL == "" || m.LastActive == nil {
		t.Errorf("member = %+v", m)
	}
	if res.Identity.Name != "Ada L." || res.Identity.PhotoURL != m.PhotoURL {
		t.Errorf("identity not refreshed: %+v", res.Identity)
	}
}

func TestSubmitPhotoFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.editor.Submit(ctx, f.ident, Submission{Name: "Ada", Status: "available"}); err != nil {
		t.Fatal(err)
	}
	f.uploader.fail = true
	_, err := f.editor.Submit(ctx, f.ident, Submission{Name: "Ada", Status: "away", Photo: png(10)})
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("got %v, want ErrUpload", err)
	}
	m, _ := f.repo.GetMember(ctx, f.ident.ID)
	if m.Status != models.StatusAvailable {
		t.Errorf("status changed to %q despite failed upload", m.Status)
	}
}

func TestUpdateTeamLogoFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.CreateTeam(ctx, &models.Team{Name: "Ops", LogoURL: "https://cdn.test/old.png"})
	f.uploader.fail = true

	name := "Platform"
	got, err := f.editor.UpdateTeam(ctx, TeamSubmission{Name: &name, Logo: png(10)})
	if err != nil {
		t.Fatalf("UpdateTeam: %v", err)
	}
	if got.Name != "Platform" || got.LogoURL != "https://cdn.test/old.png" {
		t.Errorf("team = %+v", got)
	}

	f.uploader.fail = false
	got, err = f.editor.UpdateTeam(ctx, TeamSubmission{Logo: png(10)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got.LogoURL, "https://cdn.test/teams/logos/") {
		t.Errorf("logo = %q", got.LogoURL)
	}
}

func TestUpdateTeamSettingsOverlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.CreateTeam(ctx, &models.Team{Name: "Ops"})

	yes := true
	got, err := f.editor.UpdateTeam(ctx, TeamSubmission{AllowSelfRegister: &yes})
	if err != nil {
		t.Fatalf("UpdateTeam: %v", err)
	}
	want := models.DefaultTeamSettings()
	want.AllowSelfRegister = true
	if got.Settings != want {
		t.Fatalf("settings = %+v, want %+v", got.Settings, want)
	}

	light := " Light "
	if got, err = f.editor.UpdateTeam(ctx, TeamSubmission{Theme: &light}); err != nil {
		t.Fatal(err)
	}
	if got.Settings.Theme != "light" || !got.Settings.AllowSelfRegister {
		t.Errorf("settings after theme edit = %+v", got.Settings)
	}

	neon := "neon"
	_, err = f.editor.UpdateTeam(ctx, TeamSubmission{Theme: &neon})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "theme" {
		t.Fatalf("unknown theme err = %v", err)
	}
}
