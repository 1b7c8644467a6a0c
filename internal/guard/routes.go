package guard

import (
	"strings"

	"github.com/teamfaces/teamfaces/internal/models"
)

// Route is a screen declaration.
type Route struct {
	Path        string
	Requirement Requirement
	// Ungated routes render for everyone (the unauthorized screen).
	Ungated bool
}

// Routes is the screen table. Segments starting with ':' match any non-empty segment.
var Routes = []Route{
	{Path: LoginPath, Requirement: PublicOnly()},
	{Path: "/register", Requirement: PublicOnly()},
	{Path: SetupPath, Requirement: PublicOnly()},
	{Path: "/join/:code", Requirement: PublicOnly()},
	{Path: UnauthorizedPath, Ungated: true},
	{Path: HomePath, Requirement: Authenticated()},
	{Path: ProjectionPath, Requirement: Authenticated()},
	{Path: "/profile", Requirement: Authenticated()},
	{Path: "/status", Requirement: Authenticated(models.RoleAdmin, models.RoleMember)},
	{Path: AdminPath, Requirement: Authenticated(models.RoleAdmin)},
	{Path: "/admin/invites", Requirement: Authenticated(models.RoleAdmin)},
}

// Resolve finds the route matching path (query string ignored).
func Resolve(path string) (Route, bool) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, r := range Routes {
		if matchPath(r.Path, path) {
			return r, true
		}
	}
	return Route{}, false
}

// Navigate resolves path and decides. Unmatched paths redirect to the team home.
func Navigate(state State, path string) Outcome {
	route, ok := Resolve(path)
	if !ok {
		return Outcome{Decision: RedirectHome, Location: HomePath}
	}
	if route.Ungated {
		return Outcome{Decision: Render, Location: path}
	}
	return Decide(state, route.Requirement, path)
}

func matchPath(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i, p := range ps {
		if strings.HasPrefix(p, ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if p != xs[i] {
			return false
		}
	}
	return true
}
