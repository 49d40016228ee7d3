package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/clinic-service/internal/models"
)

// ErrFeedLost is delivered once when a live subscription breaks; the feed does not reconnect
var ErrFeedLost = errors.New("room feed lost")

// SnapshotLoader reads the full ordered message list of a room
type SnapshotLoader func(ctx context.Context, roomID string) (*models.RoomSnapshot, error)

// DeliverFunc receives full snapshots, or a terminal error as the last call
type DeliverFunc func(snapshot *models.RoomSnapshot, err error)

type Subscription interface {
	RoomID() string
	Close() error
}

// RoomFeed turns message appends into snapshot deliveries for live subscribers
type RoomFeed interface {
	Subscribe(ctx context.Context, roomID string, deliver DeliverFunc) (Subscription, error)
	// Notify tells every subscriber of roomID, on any instance, that the room changed
	Notify(ctx context.Context, roomID string) error
}

// RedisRoomFeed fans room changes out through redis pub/sub
type RedisRoomFeed struct {
	client *redis.Client
	load   SnapshotLoader
	logger *slog.Logger
}

func NewRedisRoomFeed(client *redis.Client, load SnapshotLoader, logger *slog.Logger) *RedisRoomFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRoomFeed{client: client, load: load, logger: logger}
}

func channelFor(roomID string) string {
	return "room:" + roomID
}

func (f *RedisRoomFeed) Notify(ctx context.Context, roomID string) error {
	if err := f.client.Publish(ctx, channelFor(roomID), roomID).Err(); err != nil {
		return fmt.Errorf("notify room %s: %w", roomID, err)
	}
	return nil
}

// Subscribe confirms the redis subscription, then delivers an initial snapshot and one
// snapshot per change from a single goroutine, so deliveries never overlap.
func (f *RedisRoomFeed) Subscribe(ctx context.Context, roomID string, deliver DeliverFunc) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelFor(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &redisSubscription{
		roomID: roomID,
		pubsub: pubsub,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go sub.run(runCtx, f, deliver)
	return sub, nil
}

type redisSubscription struct {
	roomID string
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (s *redisSubscription) RoomID() string {
	return s.roomID
}

// Close stops deliveries; no callback runs after Close returns
func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.pubsub.Close()
		<-s.done
	})
	return s.closeErr
}

func (s *redisSubscription) run(ctx context.Context, f *RedisRoomFeed, deliver DeliverFunc) {
	defer close(s.done)

	push := func() bool {
		snapshot, err := f.load(ctx, s.roomID)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			deliver(nil, fmt.Errorf("%w: %v", ErrFeedLost, err))
			return false
		}
		deliver(snapshot, nil)
		return true
	}

	if !push() {
		return
	}

	msgs := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				if ctx.Err() == nil {
					deliver(nil, ErrFeedLost)
				}
				return
			}
			// a burst of appends collapses into one reload
			drain(msgs)
			if !push() {
				return
			}
		}
	}
}

func drain(msgs <-chan *redis.Message) {
	for {
		select {
		case _, ok := <-msgs:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
