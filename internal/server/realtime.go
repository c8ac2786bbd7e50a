package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	RealtimeEventOptionsSaved = "options-saved"
	realtimeEventHeartbeat    = "heartbeat"
	realtimeSourceBackend     = "linkinbio"
)

// RealtimeMessage announces a change to every editor session of a subject.
type RealtimeMessage struct {
	Subject   string
	EventType string
	SessionID string
	Timestamp time.Time
}

type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, subject string) (<-chan RealtimeMessage, func()) {
	if subject == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subject, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(subject, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers message to current subscribers without blocking. Slow
// subscribers miss messages once their buffer is full.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.Subject == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.Subject]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(subject string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[subject]; !ok {
		d.subscribers[subject] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[subject][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subject string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[subject]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, subject)
		}
	}
	d.mu.Unlock()
}

type realtimeEventPayload struct {
	Source    string `json:"source"`
	SessionID string `json:"sessionId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// handleEvents streams server-sent events to an editor tab until the client
// goes away.
func (h *httpHandler) handleEvents(c *gin.Context) {
	session := sessionFromContext(c)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, session.Subject)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, realtimeEventPayload{
				Source:    realtimeSourceBackend,
				SessionID: message.SessionID,
				Timestamp: unixOrZero(message.Timestamp),
			})
			return true
		case now := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, realtimeEventPayload{
				Source:    realtimeSourceBackend,
				Timestamp: now.UTC().Unix(),
			})
			return true
		}
	})
}
