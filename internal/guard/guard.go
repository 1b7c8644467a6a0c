// Package guard decides, per navigation, whether a screen renders or redirects.
package guard

import (
	"net/url"
	"slices"

	"github.com/teamfaces/teamfaces/internal/models"
)

// Well-known screen locations.
const (
	LoginPath        = "/login"
	HomePath         = "/team"
	UnauthorizedPath = "/unauthorized"
	SetupPath        = "/setup"
	ProjectionPath   = "/projection"
	AdminPath        = "/admin"
)

// Decision is the outcome kind of a navigation.
type Decision int

const (
	Render Decision = iota
	Loading
	RedirectLogin
	RedirectHome
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	}
	return "unknown"
}

// Requirement is what a route declares about who may see it.
// The zero value requires an authenticated identity of any role.
type Requirement struct {
	// Public marks a public-only screen (login, register): authenticated users are sent home.
	Public bool
	// AllowedRoles restricts the screen to these roles; empty means any role.
	AllowedRoles []models.Role
}

// RequireAuth reports whether the requirement needs an authenticated identity.
func (r Requirement) RequireAuth() bool { return !r.Public }

// Authenticated returns a requirement for signed-in users holding one of roles (any role if none given).
func Authenticated(roles ...models.Role) Requirement {
	return Requirement{AllowedRoles: roles}
}

// PublicOnly returns a requirement for screens only anonymous users should see.
func PublicOnly() Requirement {
	return Requirement{Public: true}
}

// State is the session snapshot the guard evaluates.
type State struct {
	Identity *models.Identity
	Loading  bool
}

// Outcome is a guard decision plus the location to go to when it redirects.
type Outcome struct {
	Decision Decision
	Location string
}

// Decide evaluates the route requirement against the session state. from is the requested
// location and is carried on login redirects so the login flow can return there.
func Decide(state State, req Requirement, from string) Outcome {
	if state.Loading {
		return Outcome{Decision: Loading}
	}
	if req.RequireAuth() && state.Identity == nil {
		return Outcome{Decision: RedirectLogin, Location: LoginLocation(from)}
	}
	if !req.RequireAuth() && state.Identity != nil {
		return Outcome{Decision: RedirectHome, Location: HomePath}
	}
	if len(req.AllowedRoles) > 0 && (state.Identity == nil || !slices.Contains(req.AllowedRoles, state.Identity.Role)) {
		return Outcome{Decision: RedirectUnauthorized, Location: UnauthorizedPath}
	}
	return Outcome{Decision: Render, Location: from}
}

// LoginLocation returns the login screen location carrying from.
func LoginLocation(from string) string {
	if from == "" || from == LoginPath {
		return LoginPath
	}
	return LoginPath + "?from=" + url.QueryEscape(from)
}

// ReturnTo extracts the originally requested location from a login location, or "" if none.
func ReturnTo(loginLocation string) string {
	u, err := url.Parse(loginLocation)
	if err != nil {
		return ""
	}
	return u.Query().Get("from")
}
