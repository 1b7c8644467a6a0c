package models

import (
	"testing"
	"time"
)

func TestInviteCodeUsable(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code := &InviteCode{Code: "AB12CD", ExpiresAt: expires}

	if !code.Usable(expires.Add(-time.Nanosecond)) {
		t.Error("code should be usable strictly before expiry")
	}
	if code.Usable(expires) {
		t.Error("code should not be usable at expiry")
	}
	if code.Usable(expires.Add(time.Hour)) {
		t.Error("code should not be usable after expiry")
	}

	code.Used = true
	if code.Usable(expires.Add(-time.Hour)) {
		t.Error("used code should not be usable")
	}
}

func TestIdentityMergeMember(t *testing.T) {
	id := Identity{Name: "ana", Email: "ana@example.com", Role: RoleMember}

	if got := id.MergeMember(nil); got != id {
		t.Errorf("MergeMember(nil) = %+v, want unchanged", got)
	}

	got := id.MergeMember(&Member{Name: "Ana Pérez", PhotoURL: "https://cdn/ana.png", Role: RoleAdmin})
	if got.Name != "Ana Pérez" || got.PhotoURL != "https://cdn/ana.png" || got.Role != RoleAdmin {
		t.Errorf("MergeMember = %+v", got)
	}
	if got.Email != "ana@example.com" {
		t.Errorf("Email = %q, want it kept", got.Email)
	}

	got = id.MergeMember(&Member{Role: Role("bogus")})
	if got.Role != RoleMember || got.Name != "ana" {
		t.Errorf("empty/invalid member fields should not override: %+v", got)
	}
}
