package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/client"
)

func newTestServer(t *testing.T) (*Memory, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := NewMemory("test-secret", nil)
	srv := httptest.NewServer(NewRouter(mem.Deps))
	t.Cleanup(func() {
		mem.Hub.CloseAll()
		srv.Close()
	})
	return mem, srv
}

func nextRoster(t *testing.T, w *client.Watch, cond func(client.Roster) bool) client.Roster {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case r, ok := <-w.C():
			if !ok {
				t.Fatal("roster feed closed")
			}
			if r.Err != nil {
				t.Fatalf("roster feed error: %v", r.Err)
			}
			if cond(r) {
				return r
			}
		case <-deadline:
			t.Fatal("timed out waiting for roster snapshot")
		}
	}
}

func TestTeamLifecycle(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	anon := client.New(srv.URL, "")

	required, err := anon.SetupRequired(ctx)
	if err != nil || !required {
		t.Fatalf("SetupRequired = %v, %v; want true", required, err)
	}
	if _, err := anon.GetTeam(ctx); !client.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("anonymous GetTeam err = %v, want 401", err)
	}

	setup, err := anon.Setup(ctx, client.SetupRequest{
		TeamName: "Ops",
		Admin:    client.Account{Name: "Grace", Email: "grace@example.com", Password: "secret1"},
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if setup.Team.Name != "Ops" || setup.Session.User.Role != models.RoleAdmin {
		t.Fatalf("setup result = %+v", setup)
	}
	if _, err := anon.Setup(ctx, client.SetupRequest{TeamName: "Again", Admin: client.Account{Name: "X", Email: "x@example.com", Password: "secret1"}}); !client.IsStatus(err, http.StatusConflict) {
		t.Fatalf("second Setup err = %v, want 409", err)
	}

	admin := client.New(srv.URL, setup.Session.Token)
	invite, err := admin.CreateInvite(ctx)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	preview, err := anon.PreviewInvite(ctx, strings.ToLower(invite.Code))
	if err != nil || preview.TeamName != "Ops" {
		t.Fatalf("PreviewInvite = %+v, %v", preview, err)
	}

	joined, err := anon.Join(ctx, invite.Code, client.Account{Name: "Linus", Email: "linus@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := anon.Join(ctx, invite.Code, client.Account{Name: "Late", Email: "late@example.com", Password: "secret1"}); !client.IsStatus(err, http.StatusGone) {
		t.Fatalf("reused code err = %v, want 410", err)
	}

	member := client.New(srv.URL, joined.Session.Token)
	if _, err := member.CreateInvite(ctx); !client.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("member CreateInvite err = %v, want 403", err)
	}

	watch, err := member.WatchMembers(ctx)
	if err != nil {
		t.Fatalf("WatchMembers: %v", err)
	}
	defer watch.Close()
	first := nextRoster(t, watch, func(client.Roster) bool { return true })
	if len(first.Members) != 2 || first.Team.Name != "Ops" {
		t.Fatalf("first snapshot = %+v", first)
	}

	res, err := member.UpdateMyCard(ctx, client.CardUpdate{Name: "Linus T", Status: models.StatusBusy, StatusMessage: "reviewing"})
	if err != nil {
		t.Fatalf("UpdateMyCard: %v", err)
	}
	if res.User == nil || res.User.Name != "Linus T" {
		t.Errorf("identity not refreshed: %+v", res.User)
	}
	nextRoster(t, watch, func(r client.Roster) bool {
		for _, m := range r.Members {
			if m.Name == "Linus T" && m.Status == models.StatusBusy {
				return true
			}
		}
		return false
	})

	dash, err := admin.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.TotalMembers != 2 || dash.PendingInvites != 0 || dash.BoardsOnline != 1 {
		t.Errorf("dashboard = %+v", dash)
	}
	if dash.StatusCounts[models.StatusBusy] != 1 {
		t.Errorf("status counts = %v", dash.StatusCounts)
	}

	if err := member.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := member.Me(ctx); !client.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("Me after logout err = %v, want 401", err)
	}
}

func TestRosterFeedRequiresToken(t *testing.T) {
	_, srv := newTestServer(t)
	if _, err := client.New(srv.URL, "").WatchMembers(context.Background()); !client.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestPasswordResetQueuesMail(t *testing.T) {
	mem, srv := newTestServer(t)
	ctx := context.Background()
	anon := client.New(srv.URL, "")
	if _, err := anon.Setup(ctx, client.SetupRequest{
		TeamName: "Ops",
		Admin:    client.Account{Name: "Grace", Email: "grace@example.com", Password: "secret1"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := anon.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown address should succeed silently: %v", err)
	}
	if err := anon.RequestPasswordReset(ctx, "grace@example.com"); err != nil {
		t.Fatal(err)
	}
	mail := mem.Outbox.Mail()
	if len(mail) != 1 || mail[0].RecipientEmail != "grace@example.com" {
		t.Fatalf("outbox = %+v", mail)
	}
	_, code, ok := strings.Cut(mail[0].Body, "Reset code: ")
	if !ok {
		t.Fatalf("no reset code in body:\n%s", mail[0].Body)
	}
	code = strings.TrimSpace(strings.SplitN(code, "\n", 2)[0])

	if err := anon.ConfirmPasswordReset(ctx, code, "newsecret"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if _, err := anon.Login(ctx, "grace@example.com", "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := anon.ConfirmPasswordReset(ctx, code, "another1"); !client.IsStatus(err, http.StatusBadRequest) {
		t.Errorf("reused reset code err = %v, want 400", err)
	}
}

// newTeam sets up Ops with Grace as admin and Linus joined by invite.
func newTeam(t *testing.T, srv *httptest.Server) (admin, member *client.Client, memberID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	anon := client.New(srv.URL, "")
	setup, err := anon.Setup(ctx, client.SetupRequest{
		TeamName: "Ops",
		Admin:    client.Account{Name: "Grace", Email: "grace@example.com", Password: "secret1"},
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	admin = client.New(srv.URL, setup.Session.Token)
	invite, err := admin.CreateInvite(ctx)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	joined, err := anon.Join(ctx, invite.Code, client.Account{Name: "Linus", Email: "linus@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return admin, client.New(srv.URL, joined.Session.Token), joined.Session.User.ID
}

func TestRoleChangeAppliesToExistingSessions(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	admin, member, memberID := newTeam(t, srv)
	card := client.CardUpdate{Name: "Linus", Status: models.StatusBusy}

	viewer := models.RoleViewer
	if _, err := admin.UpdateMember(ctx, memberID, client.MemberUpdate{Role: &viewer}); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if _, err := member.UpdateMyCard(ctx, card); !client.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("viewer UpdateMyCard err = %v, want 403", err)
	}
	sess, err := client.New(srv.URL, "").Login(ctx, "linus@example.com", "secret1")
	if err != nil || sess.User.Role != models.RoleViewer {
		t.Fatalf("fresh login = %+v, %v; want viewer", sess, err)
	}
	me, err := member.Me(ctx)
	if err != nil || me.Role != models.RoleViewer {
		t.Fatalf("Me = %+v, %v; want viewer", me, err)
	}

	promoted := models.RoleAdmin
	if _, err := admin.UpdateMember(ctx, memberID, client.MemberUpdate{Role: &promoted}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, err := member.CreateInvite(ctx); err != nil {
		t.Errorf("promoted admin CreateInvite: %v", err)
	}
	if _, err := member.UpdateMyCard(ctx, card); err != nil {
		t.Errorf("promoted admin UpdateMyCard: %v", err)
	}
}

func TestTeamSettingsOpenSelfRegistration(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	admin, member, _ := newTeam(t, srv)
	anon := client.New(srv.URL, "")
	acct := client.Account{Name: "Ada", Email: "ada@example.com", Password: "secret1"}

	if _, err := anon.Register(ctx, acct); !client.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("Register while closed err = %v, want 403", err)
	}

	yes, light := true, "light"
	if _, err := member.UpdateTeam(ctx, client.TeamUpdate{AllowSelfRegister: &yes}); !client.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("member settings edit err = %v, want 403", err)
	}
	bad := "neon"
	if _, err := admin.UpdateTeam(ctx, client.TeamUpdate{Theme: &bad}); !client.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("unknown theme err = %v, want 400", err)
	}
	updated, err := admin.UpdateTeam(ctx, client.TeamUpdate{AllowSelfRegister: &yes, Theme: &light})
	if err != nil {
		t.Fatalf("UpdateTeam: %v", err)
	}
	want := models.TeamSettings{AllowSelfRegister: true, RequireApproval: true, Theme: "light"}
	if updated.Settings != want {
		t.Fatalf("settings = %+v, want %+v", updated.Settings, want)
	}

	res, err := anon.Register(ctx, acct)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Session.User.Role != models.RoleViewer {
		t.Fatalf("self-registered role = %q, want viewer pending approval", res.Session.User.Role)
	}
	ada := client.New(srv.URL, res.Session.Token)
	if _, err := ada.UpdateMyCard(ctx, client.CardUpdate{Name: "Ada", Status: models.StatusAvailable}); !client.IsStatus(err, http.StatusForbidden) {
		t.Fatalf("viewer UpdateMyCard err = %v, want 403", err)
	}
	approved := models.RoleMember
	if _, err := admin.UpdateMember(ctx, res.Session.User.ID, client.MemberUpdate{Role: &approved}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := ada.UpdateMyCard(ctx, client.CardUpdate{Name: "Ada", Status: models.StatusAvailable}); err != nil {
		t.Errorf("approved member UpdateMyCard: %v", err)
	}
}
