package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
)

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ===== IDENTITY STORE =====

type account struct {
	password string
	uid      string
}

type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]account{}, sessions: map[string]string{}}
}

func (f *fakeIdentity) SignIn(_ context.Context, email, password string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		return nil, repositories.ErrInvalidCredentials
	}
	key := uuid.NewString()
	f.sessions[key] = acc.uid
	return &models.Identity{UID: acc.uid, Email: email, SessionKey: key}, nil
}

func (f *fakeIdentity) SignOut(_ context.Context, id *models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id.SessionKey)
	return nil
}

func (f *fakeIdentity) Valid(_ context.Context, id *models.Identity) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[id.SessionKey]
	return ok, nil
}

func (f *fakeIdentity) CreateIdentity(context.Context, repositories.NewIdentity) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeIdentity) DeleteIdentity(context.Context, string) error { return nil }

func (f *fakeIdentity) RevokeAll(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, owner := range f.sessions {
		if owner == uid {
			delete(f.sessions, key)
		}
	}
	return nil
}

func (f *fakeIdentity) Watch(context.Context) (<-chan repositories.IdentityChange, error) {
	return make(chan repositories.IdentityChange), nil
}

// ===== USER PROFILES =====

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.UserProfile
}

func (r *fakeUserRepo) Create(_ context.Context, p *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[p.UID] = p
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, uid string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.users[uid]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeUserRepo) List(context.Context, repositories.UserFilters) ([]*models.UserProfile, int64, error) {
	return nil, 0, nil
}

func (r *fakeUserRepo) SetBlocked(_ context.Context, uid string, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[uid].Blocked = blocked
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, uid)
	return nil
}

// ===== CLOCK =====

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) services.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// expire fires every armed timer
func (c *manualClock) expire() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// ===== ROOM FEED =====

// scriptedFeed delivers a fixed snapshot and then a terminal error on every subscribe
type scriptedFeed struct {
	snapshot *models.RoomSnapshot
	failure  error
}

type noopSub struct{ roomID string }

func (s noopSub) RoomID() string { return s.roomID }
func (s noopSub) Close() error   { return nil }

func (f *scriptedFeed) Subscribe(_ context.Context, roomID string, deliver realtime.DeliverFunc) (realtime.Subscription, error) {
	if f.snapshot != nil {
		deliver(f.snapshot, nil)
	}
	if f.failure != nil {
		deliver(nil, f.failure)
	}
	return noopSub{roomID: roomID}, nil
}

func (f *scriptedFeed) Notify(context.Context, string) error { return nil }

// ===== SERVICES =====

type fakeStationService struct {
	stations []*models.Station
	issuedBy string
	filters  repositories.SessionCodeFilters
}

func (s *fakeStationService) BootstrapPool(context.Context) error { return nil }

func (s *fakeStationService) List(context.Context) ([]*models.Station, error) {
	return s.stations, nil
}

func (s *fakeStationService) Assign(_ context.Context, stationID string, req *services.AssignStationRequest, issuedBy string) (*services.AssignmentResult, error) {
	if stationID != "S1" {
		return nil, services.ErrStationNotFound
	}
	if req.StudentID == "ghost" {
		return nil, services.ErrStudentNotFound
	}
	s.issuedBy = issuedBy
	st := &models.Station{StationID: stationID}
	st.Occupy(req.StudentID, "ABC123", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return &services.AssignmentResult{
		Station: st,
		Record:  &models.SessionCodeRecord{Station: stationID, Student: req.StudentID, Code: "ABC123", IssuedBy: issuedBy},
	}, nil
}

func (s *fakeStationService) Release(_ context.Context, stationID string) (*models.Station, error) {
	if stationID != "S1" {
		return nil, services.ErrStationNotFound
	}
	return &models.Station{StationID: stationID, Status: models.StationAvailable}, nil
}

func (s *fakeStationService) CodeHistory(_ context.Context, f repositories.SessionCodeFilters) ([]*models.SessionCodeRecord, error) {
	s.filters = f
	return []*models.SessionCodeRecord{{Station: "S1", Student: "ST-1", Code: "ABC123"}}, nil
}

type fakeExportService struct{}

func (fakeExportService) SessionCodes(context.Context, repositories.SessionCodeFilters) (*services.ExportFile, error) {
	return &services.ExportFile{
		Name:        "session_codes_2025-03-01.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        []byte("PK"),
	}, nil
}

type fakeStudentService struct{}

func (fakeStudentService) Register(_ context.Context, req *services.RegisterStudentRequest) (*models.Student, error) {
	if req.StudentID == "ST-1" {
		return nil, services.ErrStudentExists
	}
	return &models.Student{StudentID: req.StudentID, Name: req.Name}, nil
}

func (fakeStudentService) Lookup(_ context.Context, q string) ([]*models.Student, error) {
	if q == "ST-1" {
		return []*models.Student{{StudentID: "ST-1", Name: "Kofi Mensah"}}, nil
	}
	return nil, services.ErrStudentNotFound
}

type fakeUserService struct {
	actor string
}

func (s *fakeUserService) RegisterSupervisor(_ context.Context, req *services.RegisterSupervisorRequest) (*models.UserProfile, error) {
	return &models.UserProfile{UID: "new", Name: req.Name, Role: models.RoleSupervisor}, nil
}

func (s *fakeUserService) RegisterClinicStaff(_ context.Context, req *services.RegisterClinicStaffRequest) (*models.UserProfile, error) {
	return &models.UserProfile{UID: "new", Name: req.Name, Role: models.RoleClinic}, nil
}

func (s *fakeUserService) List(_ context.Context, f repositories.UserFilters) (*services.UserListResponse, error) {
	return &services.UserListResponse{Users: []*models.UserProfile{{UID: "u-sup"}}, Total: 1}, nil
}

func (s *fakeUserService) ToggleBlocked(_ context.Context, actor, uid string) (*models.UserProfile, error) {
	s.actor = actor
	if actor == uid {
		return nil, services.ErrForbidden
	}
	return &models.UserProfile{UID: uid, Blocked: true}, nil
}

func (s *fakeUserService) Delete(_ context.Context, actor, uid string) error {
	s.actor = actor
	return nil
}

// fakeChatService opens a fixed room through the session's messenger
type fakeChatService struct{}

func (fakeChatService) Contacts(context.Context, *services.Session) ([]*models.Contact, error) {
	return []*models.Contact{{UID: "u-adm", RoomID: "u-adm_u-sup"}}, nil
}

func (fakeChatService) OpenRoom(ctx context.Context, sess *services.Session, peer string) (*services.RoomStream, error) {
	self, err := sess.Principal()
	if err != nil {
		return nil, err
	}
	roomID, err := services.DeriveRoomID(self.UID, peer)
	if err != nil {
		return nil, err
	}
	return sess.Messenger().Open(ctx, roomID)
}

func (fakeChatService) History(context.Context, *services.Session, string) (*models.RoomSnapshot, error) {
	return &models.RoomSnapshot{RoomID: "u-adm_u-sup", Messages: []*models.Message{}}, nil
}

func (fakeChatService) SendMessage(_ context.Context, _ *services.Session, _ string, req *services.SendMessageRequest) (*models.Message, error) {
	if req.Text == "" {
		return nil, services.NewValidationError("text", "text is required", "")
	}
	return &models.Message{RoomID: "u-adm_u-sup", Text: req.Text}, nil
}

func (fakeChatService) SendToRoom(context.Context, string, string, string, string) (*models.Message, error) {
	return nil, errors.New("not supported")
}

func (fakeChatService) LoadSnapshot(context.Context, string) (*models.RoomSnapshot, error) {
	return nil, errors.New("not supported")
}

type fakeServiceManager struct {
	sessions services.SessionService
	stations *fakeStationService
	users    *fakeUserService
	health   error
}

func (m *fakeServiceManager) Session() services.SessionService { return m.sessions }
func (m *fakeServiceManager) Chat() services.ChatService       { return fakeChatService{} }
func (m *fakeServiceManager) Station() services.StationService { return m.stations }
func (m *fakeServiceManager) Student() services.StudentService { return fakeStudentService{} }
func (m *fakeServiceManager) User() services.UserService       { return m.users }
func (m *fakeServiceManager) Export() services.ExportService   { return fakeExportService{} }

func (m *fakeServiceManager) Initialize(context.Context) error  { return nil }
func (m *fakeServiceManager) HealthCheck(context.Context) error { return m.health }
func (m *fakeServiceManager) Shutdown(context.Context) error    { return nil }
