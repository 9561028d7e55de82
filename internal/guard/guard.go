// Package guard decides, for a screen class and a session snapshot, whether
// to render, redirect, or wait for the session to finish loading.
//
// Evaluate is pure: the same inputs always yield the same Decision.
package guard

import (
	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
)

// Well-known destinations.
const (
	PathLogin    = "/login"
	HomeAdmin    = "/admin"
	HomeResident = "/user"
)

// Class groups screens by who may see them.
type Class int

const (
	// Public screens render for everyone.
	Public Class = iota
	// GuestOnly screens (login, registration) are for signed-out visitors.
	GuestOnly
	// AdminOnly screens render inside the admin shell.
	AdminOnly
	// ResidentOnly screens render inside the resident shell.
	ResidentOnly
)

func (c Class) String() string {
	switch c {
	case GuestOnly:
		return "guest"
	case AdminOnly:
		return "admin"
	case ResidentOnly:
		return "resident"
	default:
		return "public"
	}
}

// Action is what the caller must do with a navigation.
type Action int

const (
	// Suspend means the session is still loading; render nothing yet.
	Suspend Action = iota
	// Render means show the requested screen.
	Render
	// Redirect means navigate to Decision.Target instead.
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "suspend"
	}
}

// Shell is the layout a rendered screen is wrapped in.
type Shell string

const (
	ShellNone     Shell = ""
	ShellAdmin    Shell = "admin"
	ShellResident Shell = "resident"
)

// Decision is the guard outcome.
type Decision struct {
	Action Action
	Target string
	Shell  Shell
}

func render(shell Shell) Decision    { return Decision{Action: Render, Shell: shell} }
func redirect(target string) Decision { return Decision{Action: Redirect, Target: target} }

var (
	suspend = Decision{Action: Suspend}

	// anonymous decisions per class.
	anonymous = map[Class]Decision{
		Public:       render(ShellNone),
		GuestOnly:    render(ShellNone),
		AdminOnly:    redirect(PathLogin),
		ResidentOnly: redirect(PathLogin),
	}

	// authenticated decisions per class and role. Roles missing from a row
	// fall back to the login screen.
	authenticated = map[Class]map[domainauth.Role]Decision{
		GuestOnly: {
			domainauth.RoleAdmin:    redirect(HomeAdmin),
			domainauth.RoleResident: redirect(HomeResident),
		},
		AdminOnly: {
			domainauth.RoleAdmin:    render(ShellAdmin),
			domainauth.RoleResident: redirect(HomeResident),
		},
		ResidentOnly: {
			domainauth.RoleAdmin:    redirect(HomeAdmin),
			domainauth.RoleResident: render(ShellResident),
		},
	}
)

// Evaluate maps a screen class and session snapshot to a decision.
func Evaluate(class Class, st domainauth.SessionState) Decision {
	if class == Public {
		return render(ShellNone)
	}

	switch st.Phase {
	case domainauth.PhaseAnonymous:
		if d, ok := anonymous[class]; ok {
			return d
		}
		return redirect(PathLogin)
	case domainauth.PhaseAuthenticated:
		row, ok := authenticated[class]
		if !ok {
			return redirect(PathLogin)
		}
		if d, ok := row[st.Role()]; ok {
			return d
		}
		// Unrecognised role: treat as a data-integrity problem.
		return redirect(PathLogin)
	default:
		return suspend
	}
}

// Home returns the landing screen for a role; unknown roles land on login.
func Home(role domainauth.Role) string {
	switch role {
	case domainauth.RoleAdmin:
		return HomeAdmin
	case domainauth.RoleResident:
		return HomeResident
	default:
		return PathLogin
	}
}
