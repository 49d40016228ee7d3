package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testValidator = validator.New()

// ===== DOCUMENT STORE =====

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.UserProfile
	students map[string]*models.Student
	stations map[string]*models.Station
	codes    []*models.SessionCodeRecord
	rooms    map[string]*models.ConversationRoom
	messages []*models.Message
	nextID   uint
	now      time.Time

	userErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*models.UserProfile{},
		students: map[string]*models.Student{},
		stations: map[string]*models.Station{},
		rooms:    map[string]*models.ConversationRoom{},
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *fakeStore) addUser(uid, name string, role models.UserRole) *models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.UserProfile{UID: uid, Name: name, Email: uid + "@clinic.test", Role: role, CreatedAt: s.tick()}
	s.users[uid] = p
	return p
}

func (s *fakeStore) addStudent(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[id] = &models.Student{StudentID: id, Name: name, CreatedAt: s.tick()}
}

func (s *fakeStore) station(id string) models.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.stations[id]
}

func (s *fakeStore) codeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

type fakeRepo struct {
	*fakeStore
}

func newFakeRepo() fakeRepo {
	return fakeRepo{newFakeStore()}
}

func (r fakeRepo) User() repositories.UserRepository               { return fakeUsers{r.fakeStore} }
func (r fakeRepo) Student() repositories.StudentRepository         { return fakeStudents{r.fakeStore} }
func (r fakeRepo) Station() repositories.StationRepository         { return fakeStations{r.fakeStore} }
func (r fakeRepo) SessionCode() repositories.SessionCodeRepository { return fakeCodes{r.fakeStore} }
func (r fakeRepo) Chat() repositories.ChatRepository               { return fakeChat{r.fakeStore} }
func (r fakeRepo) Ping(context.Context) error                      { return nil }
func (r fakeRepo) Close() error                                    { return nil }

// WithTransaction restores stations and code history when fn fails
func (r fakeRepo) WithTransaction(_ context.Context, fn func(repositories.Repository) error) error {
	r.mu.Lock()
	stations := make(map[string]models.Station, len(r.stations))
	for k, v := range r.stations {
		stations[k] = *v
	}
	codes := len(r.codes)
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.stations = map[string]*models.Station{}
		for k, v := range stations {
			cp := v
			r.stations[k] = &cp
		}
		r.codes = r.codes[:codes]
		r.mu.Unlock()
		return err
	}
	return nil
}

type fakeUsers struct{ *fakeStore }

func (u fakeUsers) Create(_ context.Context, p *models.UserProfile) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.userErr != nil {
		return u.userErr
	}
	if _, ok := u.users[p.UID]; ok {
		return repositories.ErrDuplicate
	}
	p.CreatedAt = u.tick()
	cp := *p
	u.users[p.UID] = &cp
	return nil
}

func (u fakeUsers) GetByID(_ context.Context, uid string) (*models.UserProfile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.users[uid]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (u fakeUsers) List(_ context.Context, f repositories.UserFilters) ([]*models.UserProfile, int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []*models.UserProfile
	for _, p := range u.users {
		if len(f.Roles) > 0 && !slices.Contains(f.Roles, p.Role) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (u fakeUsers) SetBlocked(_ context.Context, uid string, blocked bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.users[uid]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Blocked = blocked
	return nil
}

func (u fakeUsers) Delete(_ context.Context, uid string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[uid]; !ok {
		return repositories.ErrNotFound
	}
	delete(u.users, uid)
	return nil
}

type fakeStudents struct{ *fakeStore }

func (s fakeStudents) Create(_ context.Context, st *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[st.StudentID]; ok {
		return repositories.ErrDuplicate
	}
	st.CreatedAt = s.tick()
	cp := *st
	s.students[st.StudentID] = &cp
	return nil
}

func (s fakeStudents) GetByID(_ context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s fakeStudents) FindByName(_ context.Context, name string) ([]*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Student
	for _, st := range s.students {
		if st.Name == name {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s fakeStudents) ExistsByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.students[id]
	return ok, nil
}

type fakeStations struct{ *fakeStore }

func (s fakeStations) Bootstrap(_ context.Context, n int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stations) > 0 {
		return false, nil
	}
	for i := 1; i <= n; i++ {
		id := models.StationIDFor(i)
		s.stations[id] = &models.Station{StationID: id, Status: models.StationAvailable, Position: i}
	}
	return true, nil
}

func (s fakeStations) List(_ context.Context) ([]*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s fakeStations) GetByID(_ context.Context, id string) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s fakeStations) GetForUpdate(ctx context.Context, id string) (*models.Station, error) {
	return s.GetByID(ctx, id)
}

func (s fakeStations) Update(_ context.Context, st *models.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stations[st.StationID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *st
	s.stations[st.StationID] = &cp
	return nil
}

func (s fakeStations) CodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stations {
		if st.Status == models.StationOccupied && st.SessionCode != nil && *st.SessionCode == code {
			return true, nil
		}
	}
	return false, nil
}

type fakeCodes struct{ *fakeStore }

func (c fakeCodes) Append(_ context.Context, rec *models.SessionCodeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	rec.ID = c.nextID
	cp := *rec
	c.codes = append(c.codes, &cp)
	return nil
}

func (c fakeCodes) List(_ context.Context, f repositories.SessionCodeFilters) ([]*models.SessionCodeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.SessionCodeRecord
	for i := len(c.codes) - 1; i >= 0; i-- {
		rec := c.codes[i]
		if f.Station != "" && rec.Station != f.Station {
			continue
		}
		if f.Student != "" && rec.Student != f.Student {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (c fakeCodes) CountByStation(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, rec := range c.codes {
		if rec.Station == id {
			n++
		}
	}
	return n, nil
}

type fakeChat struct{ *fakeStore }

func (c fakeChat) EnsureRoom(_ context.Context, room *models.ConversationRoom) (*models.ConversationRoom, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.rooms[room.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	room.CreatedAt = c.tick()
	cp := *room
	c.rooms[room.ID] = &cp
	return room, nil
}

func (c fakeChat) GetRoom(_ context.Context, id string) (*models.ConversationRoom, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *room
	return &cp, nil
}

func (c fakeChat) AppendMessage(_ context.Context, msg *models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	msg.ID = c.nextID
	msg.Timestamp = c.tick()
	cp := *msg
	c.messages = append(c.messages, &cp)
	return nil
}

func (c fakeChat) ListMessages(_ context.Context, roomID string) ([]*models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Message
	for _, m := range c.messages {
		if m.RoomID == roomID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ===== IDENTITY STORE =====

type fakeAccount struct {
	uid      string
	password string
}

type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount
	sessions map[string]string
	signOuts []string
	revoked  []string
	deleted  []string
	nextKey  int
	changes  chan repositories.IdentityChange

	// duringSignIn runs after credentials are accepted and before SignIn returns
	duringSignIn func()
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		accounts: map[string]fakeAccount{},
		sessions: map[string]string{},
		changes:  make(chan repositories.IdentityChange, 8),
	}
}

func (f *fakeIdentity) addAccount(email, password, uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = fakeAccount{uid: uid, password: password}
}

func (f *fakeIdentity) signOutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signOuts)
}

func (f *fakeIdentity) liveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeIdentity) SignIn(_ context.Context, email, password string) (*models.Identity, error) {
	f.mu.Lock()
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		f.mu.Unlock()
		return nil, repositories.ErrInvalidCredentials
	}
	f.nextKey++
	key := fmt.Sprintf("key-%d", f.nextKey)
	f.sessions[key] = acc.uid
	hook := f.duringSignIn
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &models.Identity{UID: acc.uid, Email: email, SessionKey: key}, nil
}

func (f *fakeIdentity) SignOut(_ context.Context, id *models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id.SessionKey)
	f.signOuts = append(f.signOuts, id.UID)
	return nil
}

func (f *fakeIdentity) Valid(_ context.Context, id *models.Identity) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[id.SessionKey]
	return ok, nil
}

func (f *fakeIdentity) CreateIdentity(_ context.Context, in repositories.NewIdentity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[in.Email]; ok {
		return "", repositories.ErrIdentityExists
	}
	uid := fmt.Sprintf("uid-%d", len(f.accounts)+1)
	f.accounts[in.Email] = fakeAccount{uid: uid, password: in.Password}
	return uid, nil
}

func (f *fakeIdentity) DeleteIdentity(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, acc := range f.accounts {
		if acc.uid == uid {
			delete(f.accounts, email)
		}
	}
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeIdentity) RevokeAll(_ context.Context, uid string) error {
	f.mu.Lock()
	for key, owner := range f.sessions {
		if owner == uid {
			delete(f.sessions, key)
		}
	}
	f.revoked = append(f.revoked, uid)
	f.mu.Unlock()

	f.changes <- repositories.IdentityChange{UID: uid}
	return nil
}

func (f *fakeIdentity) Watch(context.Context) (<-chan repositories.IdentityChange, error) {
	return f.changes, nil
}

// ===== CLOCK =====

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every timer that came due, in order
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// fireStale runs a timer callback even though it was stopped, as a late time.AfterFunc would
func (c *fakeClock) fireStale(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.f()
}

func (c *fakeClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// ===== ROOM FEED =====

type fakeSub struct {
	roomID  string
	deliver realtime.DeliverFunc
	mu      sync.Mutex
	closed  bool
}

func (s *fakeSub) RoomID() string { return s.roomID }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFeed struct {
	mu       sync.Mutex
	subs     []*fakeSub
	notified []string
	failWith error
}

func (f *fakeFeed) Subscribe(_ context.Context, roomID string, deliver realtime.DeliverFunc) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	sub := &fakeSub{roomID: roomID, deliver: deliver}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeFeed) Notify(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, roomID)
	return nil
}

func (f *fakeFeed) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}
