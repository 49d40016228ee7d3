package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/metrics"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

// endedRetention is how long a closed token still reports why it closed
const endedRetention = time.Hour

type endedSession struct {
	reason models.LogoutReason
	at     time.Time
}

type sessionManager struct {
	identity  repositories.IdentityStore
	users     repositories.UserRepository
	feed      realtime.RoomFeed
	clock     Clock
	idle      time.Duration
	metrics   metrics.Recorder
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[*Session]struct{}
	ended    map[string]endedSession
	closed   bool
}

type SessionManagerConfig struct {
	Identity    repositories.IdentityStore
	Users       repositories.UserRepository
	Feed        realtime.RoomFeed
	Clock       Clock
	IdleTimeout time.Duration
	Metrics     metrics.Recorder
	Publisher   events.EventPublisher
	Logger      *slog.Logger
	Validator   *validator.Validator
}

func NewSessionManager(cfg SessionManagerConfig) SessionService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &sessionManager{
		identity:  cfg.Identity,
		users:     cfg.Users,
		feed:      cfg.Feed,
		clock:     cfg.Clock,
		idle:      cfg.IdleTimeout,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		validator: cfg.Validator,
		sessions:  make(map[string]*Session),
		pending:   make(map[*Session]struct{}),
		ended:     make(map[string]endedSession),
	}
}

func (m *sessionManager) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	if err := m.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	sess := NewSession(SessionDeps{
		Identity: m.identity,
		Users:    m.users,
		Feed:     m.feed,
		Clock:    m.clock,
		Idle:     m.idle,
		Logger:   m.logger,
	})
	sess.onEnd = m.sessionEnded

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionExpired
	}
	m.pending[sess] = struct{}{}
	m.mu.Unlock()

	err := sess.Login(ctx, req.Email, req.Password, req.Role)
	if err == nil {
		err = sess.EnterDashboard()
	}

	var ident *models.Identity
	if err == nil {
		if ident = sess.Identity(); ident == nil {
			_, err = sess.Principal()
		}
	}

	m.mu.Lock()
	delete(m.pending, sess)
	closed := m.closed
	if err == nil && !closed {
		m.sessions[ident.SessionKey] = sess
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if err == nil && closed {
		sess.Logout(ctx)
		err = ErrSessionExpired
	}

	m.metrics.RecordLogin(loginOutcome(err))
	if err != nil {
		return nil, err
	}
	m.metrics.SetActiveSessions(active)

	publishEvent(ctx, m.publisher, m.logger, events.EventSessionLoggedIn, map[string]interface{}{
		"uid":  ident.UID,
		"role": string(req.Role),
	})
	return sess, nil
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, ErrProfileMissing):
		return "profile_missing"
	case errors.Is(err, ErrAccountBlocked):
		return "blocked"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, ErrValidationFailed):
		return "invalid"
	default:
		return "error"
	}
}

func (m *sessionManager) sessionEnded(_ *Session, token string, reason models.LogoutReason) {
	now := m.clock.Now()

	m.mu.Lock()
	delete(m.sessions, token)
	m.ended[token] = endedSession{reason: reason, at: now}
	for k, e := range m.ended {
		if now.Sub(e.at) > endedRetention {
			delete(m.ended, k)
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.RecordLogout(string(reason))
	m.metrics.SetActiveSessions(active)
	publishEvent(context.Background(), m.publisher, m.logger, events.EventSessionLoggedOut, map[string]interface{}{
		"reason": string(reason),
	})
}

func (m *sessionManager) lookup(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	m.mu.RLock()
	sess, ok := m.sessions[token]
	ended, wasEnded := m.ended[token]
	m.mu.RUnlock()

	if ok {
		return sess, nil
	}
	if wasEnded {
		return nil, &SessionEndedError{Reason: ended.reason}
	}
	return nil, ErrUnauthorized
}

func (m *sessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	sess, err := m.lookup(token)
	if err != nil {
		return nil, err
	}

	ident := sess.Identity()
	if ident == nil {
		_, err := sess.Principal()
		return nil, err
	}
	valid, err := m.identity.Valid(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !valid {
		m.logger.Info("Session dropped by identity store", "uid", ident.UID)
		sess.Invalidate(ctx)
		return nil, &SessionEndedError{Reason: models.LogoutExternal}
	}
	return sess, nil
}

func (m *sessionManager) Logout(ctx context.Context, token string) error {
	sess, err := m.lookup(token)
	if err != nil {
		var ended *SessionEndedError
		if errors.As(err, &ended) {
			return nil
		}
		return err
	}
	sess.Logout(ctx)
	return nil
}

func (m *sessionManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *sessionManager) Run(ctx context.Context) error {
	changes, err := m.identity.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch identity changes: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			m.applyChange(ctx, change)
		}
	}
}

func (m *sessionManager) applyChange(ctx context.Context, change repositories.IdentityChange) {
	var affected []*Session

	m.mu.RLock()
	for token, sess := range m.sessions {
		if change.SessionKey != "" && token != change.SessionKey {
			continue
		}
		if ident := sess.Identity(); ident != nil && ident.UID == change.UID {
			affected = append(affected, sess)
		}
	}
	m.mu.RUnlock()

	for _, sess := range affected {
		sess.Invalidate(ctx)
	}
	if len(affected) > 0 {
		m.logger.Info("Sessions invalidated", "uid", change.UID, "count", len(affected))
	}
}

func (m *sessionManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions)+len(m.pending))
	for _, sess := range m.sessions {
		all = append(all, sess)
	}
	for sess := range m.pending {
		all = append(all, sess)
	}
	m.mu.Unlock()

	for _, sess := range all {
		sess.Logout(ctx)
	}
}
