package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/models"
)

func newTestSessionManager(f *sessionFixture) (SessionService, *events.MockEventPublisher) {
	pub := events.NewMockEventPublisher(testLogger())
	mgr := NewSessionManager(SessionManagerConfig{
		Identity:    f.identity,
		Users:       f.repo.User(),
		Feed:        f.feed,
		Clock:       f.clock,
		IdleTimeout: testIdle,
		Publisher:   pub,
		Logger:      testLogger(),
		Validator:   testValidator,
	})
	return mgr, pub
}

func supervisorLogin() *LoginRequest {
	return &LoginRequest{Email: "sam@clinic.test", Password: "secret1", Role: models.RoleSupervisor}
}

func TestSessionManager_LoginAndResolve(t *testing.T) {
	f := newSessionFixture()
	mgr, pub := newTestSessionManager(f)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.State() != models.StateDashboardActive {
		t.Errorf("State() = %s, want %s", sess.State(), models.StateDashboardActive)
	}
	token := sess.Snapshot().Token

	got, err := mgr.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != sess {
		t.Error("Resolve() returned a different session")
	}
	if mgr.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", mgr.ActiveCount())
	}
	if n := len(pub.EventsOfType(events.EventSessionLoggedIn)); n != 1 {
		t.Errorf("logged_in events = %d, want 1", n)
	}
}

func TestSessionManager_LoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		req     *LoginRequest
		wantErr error
	}{
		{
			name:    "bad role value",
			req:     &LoginRequest{Email: "sam@clinic.test", Password: "secret1", Role: "janitor"},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "missing email",
			req:     &LoginRequest{Password: "secret1", Role: models.RoleSupervisor},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "role mismatch",
			req:     &LoginRequest{Email: "sam@clinic.test", Password: "secret1", Role: models.RoleClinic},
			wantErr: ErrRoleMismatch,
		},
		{
			name:    "bad password",
			req:     &LoginRequest{Email: "sam@clinic.test", Password: "wrong", Role: models.RoleSupervisor},
			wantErr: ErrAuthFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			mgr, _ := newTestSessionManager(f)

			if _, err := mgr.Login(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if mgr.ActiveCount() != 0 {
				t.Errorf("ActiveCount() = %d, want 0", mgr.ActiveCount())
			}
		})
	}
}

func TestSessionManager_BlockSeenByNextLogin(t *testing.T) {
	f := newSessionFixture()
	mgr, _ := newTestSessionManager(f)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := f.repo.User().SetBlocked(ctx, "u-sup", true); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Logout(ctx, sess.Snapshot().Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := mgr.Login(ctx, supervisorLogin()); !errors.Is(err, ErrAccountBlocked) {
		t.Errorf("Login() after block error = %v, want %v", err, ErrAccountBlocked)
	}
	if mgr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", mgr.ActiveCount())
	}
}

func TestSessionManager_ResolveUnknownToken(t *testing.T) {
	mgr, _ := newTestSessionManager(newSessionFixture())

	for _, token := range []string{"", "nope"} {
		if _, err := mgr.Resolve(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnauthorized", token, err)
		}
	}
}

func TestSessionManager_ResolveAfterIdentityDropped(t *testing.T) {
	f := newSessionFixture()
	mgr, _ := newTestSessionManager(f)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatal(err)
	}
	token := sess.Snapshot().Token

	f.identity.mu.Lock()
	delete(f.identity.sessions, token)
	f.identity.mu.Unlock()

	var ended *SessionEndedError
	if _, err := mgr.Resolve(ctx, token); !errors.As(err, &ended) || ended.Reason != models.LogoutExternal {
		t.Fatalf("Resolve() error = %v, want external end", err)
	}
	if sess.State() != models.StateLoggedOut {
		t.Errorf("State() = %s, want %s", sess.State(), models.StateLoggedOut)
	}
	if mgr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", mgr.ActiveCount())
	}
}

func TestSessionManager_TimedOutTokenCarriesNotice(t *testing.T) {
	f := newSessionFixture()
	mgr, pub := newTestSessionManager(f)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatal(err)
	}
	token := sess.Snapshot().Token

	f.clock.Advance(testIdle)

	_, err = mgr.Resolve(ctx, token)
	var ended *SessionEndedError
	if !errors.As(err, &ended) {
		t.Fatalf("Resolve() error = %v, want SessionEndedError", err)
	}
	if ended.Notice() != models.TimeoutNotice {
		t.Errorf("Notice() = %q, want %q", ended.Notice(), models.TimeoutNotice)
	}
	if !errors.Is(err, ErrSessionExpired) {
		t.Error("SessionEndedError does not match ErrSessionExpired")
	}
	if n := len(pub.EventsOfType(events.EventSessionLoggedOut)); n != 1 {
		t.Errorf("logged_out events = %d, want 1", n)
	}
}

func TestSessionManager_Logout(t *testing.T) {
	f := newSessionFixture()
	mgr, _ := newTestSessionManager(f)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatal(err)
	}
	token := sess.Snapshot().Token

	if err := mgr.Logout(ctx, token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if err := mgr.Logout(ctx, token); err != nil {
		t.Errorf("second Logout() error = %v, want nil", err)
	}
	if mgr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", mgr.ActiveCount())
	}
	if f.identity.liveSessions() != 0 {
		t.Error("backend session left after logout")
	}
	if _, err := mgr.Resolve(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Resolve() after logout error = %v, want ErrSessionExpired", err)
	}
}

func TestSessionManager_RunAppliesIdentityChanges(t *testing.T) {
	f := newSessionFixture()
	f.repo.addUser("u-adm", "Ada Admin", models.RoleAdmin)
	f.identity.addAccount("ada@clinic.test", "secret2", "u-adm")
	mgr, _ := newTestSessionManager(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()

	sup, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatal(err)
	}
	adm, err := mgr.Login(ctx, &LoginRequest{Email: "ada@clinic.test", Password: "secret2", Role: models.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.identity.RevokeAll(ctx, "u-sup"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sup.State() != models.StateLoggedOut {
		if time.Now().After(deadline) {
			t.Fatal("revoked session still active")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if adm.State() != models.StateDashboardActive {
		t.Errorf("unrelated session state = %s", adm.State())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestSessionManager_Shutdown(t *testing.T) {
	f := newSessionFixture()
	mgr, _ := newTestSessionManager(f)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, supervisorLogin())
	if err != nil {
		t.Fatal(err)
	}
	stream, err := sess.Messenger().Open(ctx, "a_b")
	if err != nil {
		t.Fatal(err)
	}

	mgr.Shutdown(ctx)

	if _, err := nextWithin(t, stream); !errors.Is(err, ErrRoomReleased) {
		t.Errorf("open stream Next() error = %v, want ErrRoomReleased", err)
	}

	if sess.State() != models.StateLoggedOut {
		t.Errorf("State() = %s after shutdown", sess.State())
	}
	if mgr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", mgr.ActiveCount())
	}
	if _, err := mgr.Login(ctx, supervisorLogin()); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Login() after shutdown error = %v, want ErrSessionExpired", err)
	}
}
