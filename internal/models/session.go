package models

import (
	"slices"
	"time"
)

type SessionState string

const (
	StateLoggedOut       SessionState = "logged_out"
	StateAuthenticating  SessionState = "authenticating"
	StateRoleVerified    SessionState = "role_verified"
	StateDashboardActive SessionState = "dashboard_active"
)

type LogoutReason string

const (
	LogoutUser     LogoutReason = "user"
	LogoutTimeout  LogoutReason = "timeout"
	LogoutExternal LogoutReason = "external"
	LogoutFailure  LogoutReason = "login_failed"
)

// TimeoutNotice is shown to a client whose session was closed by the idle timer
const TimeoutNotice = "Session timed out."

type DashboardView string

const (
	ViewUsers    DashboardView = "users"
	ViewRegister DashboardView = "register"
	ViewChat     DashboardView = "chat"
	ViewStations DashboardView = "stations"
	ViewCodes    DashboardView = "codes"
	ViewPatients DashboardView = "patients"
)

var roleViews = map[UserRole][]DashboardView{
	RoleAdmin:      {ViewUsers, ViewRegister, ViewChat},
	RoleSupervisor: {ViewStations, ViewCodes, ViewChat},
	RoleClinic:     {ViewPatients},
}

// ViewsFor returns the fixed view set for a role; the first entry is the default
func ViewsFor(role UserRole) []DashboardView {
	return slices.Clone(roleViews[role])
}

func DefaultView(role UserRole) DashboardView {
	views := roleViews[role]
	if len(views) == 0 {
		return ""
	}
	return views[0]
}

func (r UserRole) HasView(v DashboardView) bool {
	return slices.Contains(roleViews[r], v)
}

// Identity is the authenticated principal returned by the Identity Store
type Identity struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	SessionKey string `json:"-"`
}

// SessionSnapshot is the externally visible state of one client session
type SessionSnapshot struct {
	Token        string          `json:"-"`
	State        SessionState    `json:"state"`
	UID          string          `json:"uid,omitempty"`
	Email        string          `json:"email,omitempty"`
	Name         string          `json:"name,omitempty"`
	Role         UserRole        `json:"role,omitempty"`
	View         DashboardView   `json:"view,omitempty"`
	Views        []DashboardView `json:"views,omitempty"`
	ActiveRoom   string          `json:"active_room,omitempty"`
	LastActivity time.Time       `json:"last_activity"`
	Notice       string          `json:"notice,omitempty"`
}
