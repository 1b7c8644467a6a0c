package team

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestRepo(t *testing.T) (*Repository, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	repo := NewRepository(store, NewLocalNotifier(), Config{InviteTTL: 7 * 24 * time.Hour, CodeLength: 6, Now: clock.Now}, nil)
	return repo, store, clock
}

func strPtr(s string) *string { return &s }

func statusPtr(s models.Status) *models.Status { return &s }

func TestGetTeamNotFound(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	if _, err := repo.GetTeam(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTeam: got %v, want ErrNotFound", err)
	}
}

func TestCreateTeamTwice(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	if err := repo.CreateTeam(ctx, &models.Team{Name: "Ops", AdminID: uuid.New()}); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	got, err := repo.GetTeam(ctx)
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if got.Name != "Ops" || got.Settings != models.DefaultTeamSettings() {
		t.Errorf("GetTeam = %+v", got)
	}
	if err := repo.CreateTeam(ctx, &models.Team{Name: "Other"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second CreateTeam: got %v, want ErrAlreadyExists", err)
	}
}

func TestUpsertMemberIdempotent(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	id := uuid.New()
	fields := MemberFields{Name: strPtr("Ada"), Status: statusPtr(models.StatusBusy), StatusMessage: strPtr("heads down")}

	first, err := repo.UpsertMember(ctx, id, fields)
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	second, err := repo.UpsertMember(ctx, id, fields)
	if err != nil {
		t.Fatalf("UpsertMember again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("records differ:\n%+v\n%+v", first, second)
	}
	list, _ := repo.ListMembers(ctx)
	if len(list) != 1 {
		t.Fatalf("ListMembers len = %d, want 1", len(list))
	}
}

func TestUpsertMemberMergesFields(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	id := uuid.New()
	if _, err := repo.UpsertMember(ctx, id, MemberFields{Name: strPtr("Ada"), Schedule: strPtr("9-5")}); err != nil {
		t.Fatal(err)
	}
	m, err := repo.UpsertMember(ctx, id, MemberFields{Status: statusPtr(models.StatusAway)})
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Ada" || m.Schedule != "9-5" || m.Status != models.StatusAway {
		t.Errorf("merged member = %+v", m)
	}
	if m.Role != models.RoleMember {
		t.Errorf("default role = %q", m.Role)
	}
}

func TestStatusChangeRecordsActivity(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	id := uuid.New()
	repo.UpsertMember(ctx, id, MemberFields{Name: strPtr("Ada"), Status: statusPtr(models.StatusAvailable)})
	repo.UpsertMember(ctx, id, MemberFields{Status: statusPtr(models.StatusAvailable)})
	repo.UpsertMember(ctx, id, MemberFields{Status: statusPtr(models.StatusMeeting)})

	acts, err := repo.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 1 {
		t.Fatalf("activity = %+v, want one entry", acts)
	}
	if acts[0].Type != models.ActivityStatus || acts[0].Message != "Ada is now meeting" {
		t.Errorf("activity = %+v", acts[0])
	}
}

func TestInviteCodeRoundTrip(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	repo.CreateTeam(ctx, &models.Team{Name: "Ops"})

	inv, err := repo.GenerateInviteCode(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateInviteCode: %v", err)
	}
	if len(inv.Code) != 6 {
		t.Errorf("code %q has length %d", inv.Code, len(inv.Code))
	}
	team, err := repo.ConsumeInviteCode(ctx, inv.Code, uuid.New())
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if team.Name != "Ops" {
		t.Errorf("team = %+v", team)
	}
	if _, err := repo.ConsumeInviteCode(ctx, inv.Code, uuid.New()); !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("second consume: got %v, want ErrInvalidInvite", err)
	}
}

func TestConsumeInviteCodeCaseInsensitive(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	repo.CreateTeam(ctx, &models.Team{Name: "Ops"})
	inv, _ := repo.GenerateInviteCode(ctx, nil)

	lower := " " + strings.ToLower(inv.Code) + " "
	if _, err := repo.ConsumeInviteCode(ctx, lower, uuid.New()); err != nil {
		t.Fatalf("consume %q: %v", lower, err)
	}
}

func TestConsumeInviteCodeExpiryBoundary(t *testing.T) {
	repo, _, clock := newTestRepo(t)
	ctx := context.Background()
	repo.CreateTeam(ctx, &models.Team{Name: "Ops"})
	start := clock.Now()

	expired, _ := repo.GenerateInviteCode(ctx, nil)
	clock.Set(start.Add(7 * 24 * time.Hour))
	if _, err := repo.ConsumeInviteCode(ctx, expired.Code, uuid.New()); !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("consume at expiry: got %v, want ErrInvalidInvite", err)
	}

	clock.Set(start)
	fresh, _ := repo.GenerateInviteCode(ctx, nil)
	clock.Set(start.Add(7*24*time.Hour - time.Nanosecond))
	if _, err := repo.ConsumeInviteCode(ctx, fresh.Code, uuid.New()); err != nil {
		t.Fatalf("consume just before expiry: %v", err)
	}
}

func TestConsumeInviteCodeConcurrent(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	repo.CreateTeam(ctx, &models.Team{Name: "Ops"})
	inv, _ := repo.GenerateInviteCode(ctx, nil)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeInviteCode(ctx, inv.Code, uuid.New()); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("%d consumers succeeded, want exactly 1", wins)
	}
}

func TestConsumeInviteCodeInvalid(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	for _, code := range []string{"", "AB-12!", "NOPE42"} {
		if _, err := repo.ConsumeInviteCode(ctx, code, uuid.New()); !errors.Is(err, ErrInvalidInvite) {
			t.Errorf("consume %q: got %v, want ErrInvalidInvite", code, err)
		}
	}
}

func TestPeekInviteCodeDoesNotConsume(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	repo.CreateTeam(ctx, &models.Team{Name: "Ops"})
	inv, _ := repo.GenerateInviteCode(ctx, nil)

	for i := 0; i < 2; i++ {
		if _, err := repo.PeekInviteCode(ctx, inv.Code); err != nil {
			t.Fatalf("peek %d: %v", i, err)
		}
	}
	active, _ := repo.ActiveInviteCodes(ctx)
	if len(active) != 1 {
		t.Fatalf("active codes = %d, want 1", len(active))
	}
	repo.ConsumeInviteCode(ctx, inv.Code, uuid.New())
	if _, err := repo.PeekInviteCode(ctx, inv.Code); !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("peek after consume: got %v", err)
	}
	active, _ = repo.ActiveInviteCodes(ctx)
	if len(active) != 0 {
		t.Fatalf("active codes after consume = %d, want 0", len(active))
	}
}

func TestCountActiveSince(t *testing.T) {
	repo, _, clock := newTestRepo(t)
	ctx := context.Background()
	now := clock.Now()
	earlier := now.Add(-48 * time.Hour)
	repo.UpsertMember(ctx, uuid.New(), MemberFields{LastActive: &now})
	repo.UpsertMember(ctx, uuid.New(), MemberFields{LastActive: &earlier})
	repo.UpsertMember(ctx, uuid.New(), MemberFields{})

	n, err := repo.CountActiveSince(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountActiveSince = %d, want 1", n)
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"abc123", "ABC123", true},
		{"  XyZ9  ", "XYZ9", true},
		{"", "", false},
		{"AB 12", "", false},
		{"ÄBC", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeCode(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
