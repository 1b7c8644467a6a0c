package main

import (
	"bytes"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/teamfaces/teamfaces/internal/cliconfig"
	"github.com/teamfaces/teamfaces/internal/keychain"
	"github.com/teamfaces/teamfaces/internal/server"
)

type testEnv struct {
	t   *testing.T
	mem *server.Memory
	url string
	kc  *keychain.MockKeychain
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(cliconfig.EnvConfigDir, t.TempDir())
	t.Setenv(cliconfig.EnvServerURL, "")

	mem := server.NewMemory("cli-test-secret", nil)
	srv := httptest.NewServer(server.NewRouter(mem.Deps))
	t.Cleanup(func() {
		mem.Hub.CloseAll()
		srv.Close()
	})

	kc := keychain.NewMockKeychain()
	origFactory, origTerminal := keychainFactory, stdinIsTerminal
	keychainFactory = func() keychain.Keychain { return kc }
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() {
		keychainFactory, stdinIsTerminal = origFactory, origTerminal
	})
	return &testEnv{t: t, mem: mem, url: srv.URL, kc: kc}
}

// run executes one CLI invocation against the test server.
func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	var out bytes.Buffer
	err := execute(append([]string{"--server", e.url}, args...), strings.NewReader(stdin), &out, &out)
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	if err != nil {
		e.t.Fatalf("teamfaces %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *testEnv) setup() {
	e.t.Helper()
	e.mustRun("setup", "--team", "Ops", "--name", "Grace", "--email", "grace@example.com", "--password", "secret1")
}

var inviteRE = regexp.MustCompile(`Invite code: (\S+)`)

func (e *testEnv) invite() string {
	e.t.Helper()
	out := e.mustRun("invite")
	m := inviteRE.FindStringSubmatch(out)
	if m == nil {
		e.t.Fatalf("no invite code in output:\n%s", out)
	}
	return m[1]
}

func TestSetupSignsInAdmin(t *testing.T) {
	e := newTestEnv(t)
	e.setup()

	if _, err := e.kc.Get(keychain.TokenKey(e.url)); err != nil {
		t.Fatalf("token not stored: %v", err)
	}
	out := e.mustRun("whoami")
	if !strings.Contains(out, "grace@example.com") || !strings.Contains(out, "admin") {
		t.Errorf("whoami output = %q", out)
	}

	out = e.mustRun("setup", "--team", "Other")
	if !strings.Contains(out, "Already signed in as Grace") || !strings.Contains(out, "Ops") {
		t.Errorf("setup while signed in output = %q", out)
	}
}

func TestSetupRefusedOnceTeamExists(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	e.mustRun("logout")

	_, err := e.run("", "setup", "--team", "Other", "--name", "X", "--email", "x@example.com", "--password", "secret1")
	if err == nil || !strings.Contains(err.Error(), "already has a team") {
		t.Fatalf("err = %v, want already has a team", err)
	}
}

func TestGuardedCommandsRequireSession(t *testing.T) {
	e := newTestEnv(t)
	for _, args := range [][]string{{"team"}, {"status", "busy"}, {"invite"}, {"admin"}, {"board"}} {
		_, err := e.run("", args...)
		if err != errNotSignedIn {
			t.Errorf("teamfaces %s err = %v, want errNotSignedIn", strings.Join(args, " "), err)
		}
	}
}

func TestLoginWhileSignedInShowsHome(t *testing.T) {
	e := newTestEnv(t)
	e.setup()

	out := e.mustRun("login", "--email", "grace@example.com", "--password", "secret1")
	if !strings.Contains(out, "Already signed in as Grace") || !strings.Contains(out, "Ops") {
		t.Errorf("output = %q", out)
	}
}

func TestLoginPromptsForCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	e.mustRun("logout")
	if _, err := e.kc.Get(keychain.TokenKey(e.url)); err != keychain.ErrNotFound {
		t.Fatalf("token still stored after logout: %v", err)
	}

	out, err := e.run("grace@example.com\nsecret1\n", "login")
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Signed in as Grace (admin)") {
		t.Errorf("output = %q", out)
	}

	e.mustRun("logout")
	_, err = e.run("grace@example.com\nwrong-password\n", "login")
	if err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Errorf("bad password err = %v", err)
	}
}

func TestJoinAndUpdateStatus(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	code := e.invite()
	e.mustRun("logout")

	out := e.mustRun("join", strings.ToLower(code), "--name", "Linus", "--email", "linus@example.com", "--password", "secret1")
	if !strings.Contains(out, "Joining Ops") || !strings.Contains(out, "Welcome to Ops, Linus") {
		t.Fatalf("join output = %q", out)
	}

	out = e.mustRun("status", "busy", "-m", "heads down")
	if !strings.Contains(out, "You are now busy: heads down") {
		t.Errorf("status output = %q", out)
	}
	// A later edit keeps fields that were not passed.
	e.mustRun("status", "--schedule", "9-17")
	out = e.mustRun("status")
	for _, want := range []string{"Linus", "busy", "heads down", "9-17"} {
		if !strings.Contains(out, want) {
			t.Errorf("card output missing %q:\n%s", want, out)
		}
	}

	out = e.mustRun("team")
	if !strings.Contains(out, "Grace (admin)") || !strings.Contains(out, "Linus") {
		t.Errorf("team output = %q", out)
	}

	if _, err := e.run("", "status", "sleeping"); err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("unknown status err = %v", err)
	}
}

func TestMembersCannotReachAdminScreens(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	code := e.invite()
	e.mustRun("logout")
	e.mustRun("join", code, "--name", "Linus", "--email", "linus@example.com", "--password", "secret1")

	for _, args := range [][]string{{"invite"}, {"admin"}, {"admin", "emails"}} {
		_, err := e.run("", args...)
		if err == nil || !strings.Contains(err.Error(), "not available to the member role") {
			t.Errorf("teamfaces %s err = %v", strings.Join(args, " "), err)
		}
	}
}

func TestJoinWithUsedCode(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	code := e.invite()
	e.mustRun("logout")
	e.mustRun("join", code, "--name", "Linus", "--email", "linus@example.com", "--password", "secret1")
	e.mustRun("logout")

	_, err := e.run("", "join", code, "--name", "Late", "--email", "late@example.com", "--password", "secret1")
	if err == nil || !strings.Contains(err.Error(), "invite code") {
		t.Errorf("err = %v, want invite code error", err)
	}
}

func TestInviteCopyAndList(t *testing.T) {
	e := newTestEnv(t)
	e.setup()

	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error { copied = s; return nil }
	defer func() { copyToClipboard = orig }()

	out := e.mustRun("invite", "--copy")
	m := inviteRE.FindStringSubmatch(out)
	if m == nil || copied != m[1] {
		t.Fatalf("copied %q, output %q", copied, out)
	}

	out = e.mustRun("invite", "--list")
	if !strings.Contains(out, m[1]) || !strings.Contains(out, "active") {
		t.Errorf("list output = %q", out)
	}
}

func TestAdminDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	e.invite()

	out := e.mustRun("admin")
	for _, want := range []string{"Ops", "Members:         1", "Pending invites: 1", "Recent activity"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q:\n%s", want, out)
		}
	}

	out = e.mustRun("admin", "team", "--name", "Platform Ops")
	if !strings.Contains(out, "Team updated: Platform Ops") || !strings.Contains(out, "self-register: false") {
		t.Errorf("admin team output = %q", out)
	}
}

func TestAdminOpensSelfRegistration(t *testing.T) {
	e := newTestEnv(t)
	e.setup()

	out := e.mustRun("admin", "team", "--self-register", "--approval=false", "--theme", "light")
	for _, want := range []string{"self-register: true", "approval:      false", "theme:         light"} {
		if !strings.Contains(out, want) {
			t.Errorf("admin team output missing %q:\n%s", want, out)
		}
	}
	e.mustRun("logout")

	out = e.mustRun("register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	if !strings.Contains(out, "You joined as member") {
		t.Errorf("register output = %q", out)
	}
}

func TestResetPassword(t *testing.T) {
	e := newTestEnv(t)
	e.setup()
	e.mustRun("logout")

	out := e.mustRun("reset-password", "--email", "grace@example.com")
	if !strings.Contains(out, "reset code is on its way") {
		t.Errorf("request output = %q", out)
	}
	mail := e.mem.Outbox.Mail()
	if len(mail) != 1 {
		t.Fatalf("outbox has %d messages", len(mail))
	}
	m := regexp.MustCompile(`Reset code: (\S+)`).FindStringSubmatch(mail[0].Body)
	if m == nil {
		t.Fatalf("no code in body:\n%s", mail[0].Body)
	}

	e.mustRun("reset-password", "--code", m[1], "--password", "newsecret")
	out = e.mustRun("login", "--email", "grace@example.com", "--password", "newsecret")
	if !strings.Contains(out, "Signed in as Grace") {
		t.Errorf("login output = %q", out)
	}
}

func TestProfileUpdate(t *testing.T) {
	e := newTestEnv(t)
	e.setup()

	out := e.mustRun("profile", "--email", "grace.h@example.com")
	if !strings.Contains(out, "Profile updated.") || !strings.Contains(out, "email: grace.h@example.com") {
		t.Errorf("profile output = %q", out)
	}
	out = e.mustRun("whoami")
	if !strings.HasPrefix(out, "Grace <grace.h@example.com>") {
		t.Errorf("whoami output = %q", out)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	e := newTestEnv(t)

	out := e.mustRun("config", "set", "session.error_ttl", "10s")
	if !strings.Contains(out, "Set session.error_ttl = 10s") {
		t.Errorf("set output = %q", out)
	}
	out = e.mustRun("config", "show")
	if !strings.Contains(out, "session.error_ttl: 10s") {
		t.Errorf("show output = %q", out)
	}

	for _, args := range [][]string{
		{"config", "set", "server.url", "ftp://example.com"},
		{"config", "set", "session.error_ttl", "soon"},
		{"config", "set", "colour", "blue"},
	} {
		if _, err := e.run("", args...); err == nil {
			t.Errorf("teamfaces %s: expected error", strings.Join(args, " "))
		}
	}
}
