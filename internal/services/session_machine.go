package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

// Session is the state machine of one client session.
//
// Backend calls run outside mu. Every transition that follows a backend call
// re-checks epoch, so a logout or timeout that lands while a login is in flight wins.
type Session struct {
	identity repositories.IdentityStore
	users    repositories.UserRepository
	clock    Clock
	idle     time.Duration
	logger   *slog.Logger

	mu           sync.Mutex
	state        models.SessionState
	ident        *models.Identity
	profile      *models.UserProfile
	view         models.DashboardView
	epoch        uint64
	timer        Timer
	timerGen     uint64
	lastActivity time.Time
	endReason    models.LogoutReason

	messenger *Messenger
	onEnd     func(s *Session, token string, reason models.LogoutReason)
}

type SessionDeps struct {
	Identity repositories.IdentityStore
	Users    repositories.UserRepository
	Feed     realtime.RoomFeed
	Clock    Clock
	Idle     time.Duration
	Logger   *slog.Logger
}

func NewSession(deps SessionDeps) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		identity:  deps.Identity,
		users:     deps.Users,
		clock:     clock,
		idle:      deps.Idle,
		logger:    logger,
		state:     models.StateLoggedOut,
		messenger: NewMessenger(deps.Feed),
	}
}

// Login authenticates against the Identity Store and verifies the profile.
// Any failed check signs the identity out again and leaves the session LoggedOut.
func (s *Session) Login(ctx context.Context, email, password string, role models.UserRole) error {
	s.mu.Lock()
	if s.state != models.StateLoggedOut {
		s.mu.Unlock()
		return fmt.Errorf("%w: login from %s", ErrInvalidTransition, s.state)
	}
	s.state = models.StateAuthenticating
	s.endReason = ""
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	ident, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		s.abortLogin(ctx, epoch, nil)
		if errors.Is(err, repositories.ErrInvalidCredentials) {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return fmt.Errorf("sign in: %w", err)
	}

	profile, err := s.users.GetByID(ctx, ident.UID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		err = ErrProfileMissing
	case err != nil:
		err = fmt.Errorf("read profile: %w", err)
	case profile.Blocked:
		err = ErrAccountBlocked
	case profile.Role != role:
		err = ErrRoleMismatch
	}
	if err != nil {
		s.logger.Info("Login rejected", "uid", ident.UID, "claimed_role", role, "error", err)
		s.abortLogin(ctx, epoch, ident)
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch || s.state != models.StateAuthenticating {
		reason := s.endReason
		s.mu.Unlock()
		s.signOut(ctx, ident)
		return &SessionEndedError{Reason: reason}
	}
	s.ident = ident
	s.profile = profile
	s.state = models.StateRoleVerified
	s.lastActivity = s.clock.Now()
	s.armLocked()
	s.mu.Unlock()

	s.logger.Info("Login succeeded", "uid", ident.UID, "role", role)
	return nil
}

func (s *Session) abortLogin(ctx context.Context, epoch uint64, ident *models.Identity) {
	if ident != nil {
		s.signOut(ctx, ident)
	}
	s.mu.Lock()
	if s.epoch == epoch && s.state == models.StateAuthenticating {
		s.state = models.StateLoggedOut
		s.endReason = models.LogoutFailure
	}
	s.mu.Unlock()
}

func (s *Session) signOut(ctx context.Context, ident *models.Identity) {
	if err := s.identity.SignOut(context.WithoutCancel(ctx), ident); err != nil {
		s.logger.Warn("Failed to sign out identity", "uid", ident.UID, "error", err)
	}
}

// EnterDashboard moves RoleVerified to DashboardActive on the role's default view
func (s *Session) EnterDashboard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case models.StateRoleVerified:
		s.state = models.StateDashboardActive
		s.view = models.DefaultView(s.profile.Role)
		return nil
	case models.StateLoggedOut:
		return s.endedErrLocked()
	default:
		return fmt.Errorf("%w: enter dashboard from %s", ErrInvalidTransition, s.state)
	}
}

func (s *Session) SwitchView(view models.DashboardView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case models.StateDashboardActive:
	case models.StateLoggedOut:
		return s.endedErrLocked()
	default:
		return fmt.Errorf("%w: switch view from %s", ErrInvalidTransition, s.state)
	}
	if !s.profile.Role.HasView(view) {
		return fmt.Errorf("%w: %s", ErrInvalidView, view)
	}
	s.view = view
	return nil
}

// Touch records a qualifying input event and re-arms the idle timer
func (s *Session) Touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked() {
		return s.endedErrLocked()
	}
	s.lastActivity = s.clock.Now()
	s.armLocked()
	return nil
}

func (s *Session) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.idle, func() { s.onIdle(gen) })
}

func (s *Session) onIdle(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || !s.activeLocked() {
		s.mu.Unlock()
		return
	}
	cleanup := s.endLocked(models.LogoutTimeout)
	s.mu.Unlock()

	s.logger.Info("Session timed out", "idle", s.idle)
	cleanup(context.Background())
}

// Logout ends the session on user request. Logging out twice is a no-op.
func (s *Session) Logout(ctx context.Context) {
	s.end(ctx, models.LogoutUser)
}

// Invalidate forces LoggedOut after the Identity Store dropped the identity
func (s *Session) Invalidate(ctx context.Context) {
	s.end(ctx, models.LogoutExternal)
}

func (s *Session) end(ctx context.Context, reason models.LogoutReason) {
	s.mu.Lock()
	cleanup := s.endLocked(reason)
	s.mu.Unlock()
	cleanup(ctx)
}

// endLocked transitions to LoggedOut and returns the work to run once mu is released
func (s *Session) endLocked(reason models.LogoutReason) func(context.Context) {
	if s.state == models.StateLoggedOut {
		return func(context.Context) {}
	}

	ident := s.ident
	token := ""
	if ident != nil {
		token = ident.SessionKey
	}
	s.state = models.StateLoggedOut
	s.ident = nil
	s.profile = nil
	s.view = ""
	s.endReason = reason
	s.epoch++
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	onEnd := s.onEnd

	return func(ctx context.Context) {
		s.messenger.Close()
		if ident == nil {
			return
		}
		if reason != models.LogoutExternal {
			s.signOut(ctx, ident)
		}
		if onEnd != nil {
			onEnd(s, token, reason)
		}
	}
}

func (s *Session) activeLocked() bool {
	return s.state == models.StateRoleVerified || s.state == models.StateDashboardActive
}

func (s *Session) endedErrLocked() error {
	return &SessionEndedError{Reason: s.endReason}
}

func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the backend identity, nil when logged out
func (s *Session) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident == nil {
		return nil
	}
	cp := *s.ident
	return &cp
}

// Principal returns the verified profile, or a SessionEndedError when logged out
func (s *Session) Principal() (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return nil, s.endedErrLocked()
	}
	return s.profile, nil
}

func (s *Session) Messenger() *Messenger {
	return s.messenger
}

func (s *Session) Snapshot() *models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &models.SessionSnapshot{
		State:        s.state,
		View:         s.view,
		LastActivity: s.lastActivity,
	}
	if s.ident != nil {
		snap.Token = s.ident.SessionKey
		snap.UID = s.ident.UID
		snap.Email = s.ident.Email
	}
	if s.profile != nil {
		snap.Name = s.profile.DisplayName()
		snap.Role = s.profile.Role
		snap.Views = models.ViewsFor(s.profile.Role)
	}
	if s.state == models.StateLoggedOut && s.endReason == models.LogoutTimeout {
		snap.Notice = models.TimeoutNotice
	}
	snap.ActiveRoom = s.messenger.ActiveRoom()
	return snap
}
