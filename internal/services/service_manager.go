package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/metrics"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	IdleTimeout     time.Duration
	StationPoolSize int
	CodeLength      int

	// Clock and Codes are replaced in tests
	Clock Clock
	Codes CodeGenerator
}

// ServiceDeps are the backends every service is built on
type ServiceDeps struct {
	Repo      repositories.Repository
	Identity  repositories.IdentityStore
	Redis     *redis.Client
	Feed      realtime.RoomFeed
	Publisher events.EventPublisher
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	Validator *validator.Validator
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   ServiceDeps
	config ServiceManagerConfig

	sessionService SessionService
	chatService    ChatService
	stationService StationService
	studentService StudentService
	userService    UserService
	exportService  ExportService

	stopWatch context.CancelFunc
	watchDone chan struct{}

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps ServiceDeps, config ServiceManagerConfig) ServiceManager {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = SystemClock
	}
	return &serviceManager{deps: deps, config: config}
}

// DefaultServiceManagerConfig matches the clinic's defaults
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		IdleTimeout:     15 * time.Minute,
		StationPoolSize: 10,
		CodeLength:      6,
	}
}

// Initialize sets up all services, bootstraps the station pool and starts the identity watcher
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.deps.Logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := sm.stationService.BootstrapPool(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sm.stopWatch = cancel
	sm.watchDone = make(chan struct{})
	go func() {
		defer close(sm.watchDone)
		if err := sm.sessionService.Run(watchCtx); err != nil {
			sm.deps.Logger.Error("Identity watcher stopped", "error", err)
		}
	}()

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) initializeServices() error {
	d := sm.deps
	if d.Repo == nil || d.Identity == nil || d.Validator == nil {
		return errors.New("repository, identity store and validator are required")
	}

	feed := d.Feed
	if feed == nil {
		if d.Redis == nil {
			return errors.New("redis client or room feed is required")
		}
		feed = realtime.NewRedisRoomFeed(d.Redis, SnapshotLoader(d.Repo), d.Logger)
	}

	sm.sessionService = NewSessionManager(SessionManagerConfig{
		Identity:    d.Identity,
		Users:       d.Repo.User(),
		Feed:        feed,
		Clock:       sm.config.Clock,
		IdleTimeout: sm.config.IdleTimeout,
		Metrics:     d.Metrics,
		Publisher:   d.Publisher,
		Logger:      d.Logger,
		Validator:   d.Validator,
	})
	sm.chatService = NewChatService(d.Repo, feed, d.Metrics, d.Publisher, d.Logger, d.Validator)
	sm.stationService = NewStationService(d.Repo, StationServiceConfig{
		PoolSize:   sm.config.StationPoolSize,
		CodeLength: sm.config.CodeLength,
		Codes:      sm.config.Codes,
		Clock:      sm.config.Clock,
	}, d.Metrics, d.Publisher, d.Logger, d.Validator)
	sm.studentService = NewStudentService(d.Repo, d.Publisher, d.Logger, d.Validator)
	sm.userService = NewUserService(d.Repo, d.Identity, d.Publisher, d.Logger, d.Validator)
	sm.exportService = NewExportService(d.Repo, sm.config.Clock, d.Logger)
	return nil
}

func (sm *serviceManager) ready() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Service getters
func (sm *serviceManager) Session() SessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.sessionService
}

func (sm *serviceManager) Chat() ChatService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.chatService
}

func (sm *serviceManager) Station() StationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.stationService
}

func (sm *serviceManager) Student() StudentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.studentService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.userService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.exportService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if sm.deps.Redis != nil {
		if err := sm.deps.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}
	return nil
}

// Shutdown logs every live session out and stops the identity watcher
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown || !sm.initialized {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	sm.sessionService.Shutdown(ctx)
	sm.stopWatch()
	select {
	case <-sm.watchDone:
	case <-ctx.Done():
		sm.deps.Logger.Warn("Identity watcher did not stop in time")
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return nil
}
