package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/realtime"
)

// Messenger holds the single active room subscription of a session.
// Deliveries carry the generation they were opened with and are dropped once a newer room replaced them.
type Messenger struct {
	feed realtime.RoomFeed

	mu     sync.Mutex
	gen    uint64
	sub    realtime.Subscription
	stream *RoomStream
	closed bool
}

func NewMessenger(feed realtime.RoomFeed) *Messenger {
	return &Messenger{feed: feed}
}

// Open subscribes to roomID, releasing whatever room was open before
func (m *Messenger) Open(ctx context.Context, roomID string) (*RoomStream, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionExpired
	}
	m.gen++
	gen := m.gen
	oldSub, oldStream := m.sub, m.stream
	m.sub, m.stream = nil, nil
	m.mu.Unlock()

	release(oldSub, oldStream)

	stream := newRoomStream(roomID)
	sub, err := m.feed.Subscribe(ctx, roomID, func(snap *models.RoomSnapshot, err error) {
		m.deliver(gen, stream, snap, err)
	})
	if err != nil {
		stream.close()
		return nil, fmt.Errorf("%w: %v", ErrSubscription, err)
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		release(sub, stream)
		return nil, fmt.Errorf("%w: room %s was superseded", ErrSubscription, roomID)
	}
	m.sub, m.stream = sub, stream
	m.mu.Unlock()
	return stream, nil
}

func (m *Messenger) deliver(gen uint64, stream *RoomStream, snap *models.RoomSnapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed {
		return
	}
	if err != nil {
		stream.fail(fmt.Errorf("%w: %v", ErrSubscription, err))
		return
	}
	stream.push(snap)
}

// Release closes stream if it is still the active one
func (m *Messenger) Release(stream *RoomStream) {
	m.mu.Lock()
	if m.stream != stream || stream == nil {
		m.mu.Unlock()
		return
	}
	m.gen++
	sub := m.sub
	m.sub, m.stream = nil, nil
	m.mu.Unlock()

	release(sub, stream)
}

// Close releases the active room and refuses further opens
func (m *Messenger) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	sub, stream := m.sub, m.stream
	m.sub, m.stream = nil, nil
	m.mu.Unlock()

	release(sub, stream)
}

func (m *Messenger) ActiveRoom() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return ""
	}
	return m.stream.RoomID()
}

// release must not run under Messenger.mu: closing a subscription waits for its in-flight delivery
func release(sub realtime.Subscription, stream *RoomStream) {
	if sub != nil {
		_ = sub.Close()
	}
	if stream != nil {
		stream.close()
	}
}

// RoomStream buffers the latest snapshot of one open room. Readers only ever see the newest state.
type RoomStream struct {
	roomID string
	notify chan struct{}

	mu     sync.Mutex
	latest *models.RoomSnapshot
	err    error
	done   bool
}

func newRoomStream(roomID string) *RoomStream {
	return &RoomStream{roomID: roomID, notify: make(chan struct{}, 1)}
}

func (r *RoomStream) RoomID() string {
	return r.roomID
}

func (r *RoomStream) push(snap *models.RoomSnapshot) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.latest = snap
	r.mu.Unlock()
	r.signal()
}

func (r *RoomStream) fail(err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.err = err
	r.done = true
	r.mu.Unlock()
	r.signal()
}

func (r *RoomStream) close() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.latest = nil
	r.err = ErrRoomReleased
	r.done = true
	r.mu.Unlock()
	r.signal()
}

func (r *RoomStream) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a newer snapshot arrives, the stream ends, or ctx is done.
// It returns ErrRoomReleased after another room replaced this one.
func (r *RoomStream) Next(ctx context.Context) (*models.RoomSnapshot, error) {
	for {
		r.mu.Lock()
		if snap := r.latest; snap != nil {
			r.latest = nil
			r.mu.Unlock()
			return snap, nil
		}
		if r.done {
			err := r.err
			r.mu.Unlock()
			return nil, err
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.notify:
		}
	}
}
