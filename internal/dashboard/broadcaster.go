package dashboard

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/smartats/ats-backend/internal/domain"
)

// Notice is the dashboard-facing rendering of a domain event.
type Notice struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Connection is one attached dashboard client. Notices arrives on C until
// the connection is closed; a slow client sheds its oldest pending notice
// instead of blocking the broadcaster.
type Connection struct {
	id string
	C  chan Notice
}

// Broadcaster fans domain events out to every attached dashboard
// connection. It subscribes to the event bus like any other consumer.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	bufferSize  int
	logger      *log.Logger
}

func NewBroadcaster(bufferSize int, logger *log.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Broadcaster{
		connections: make(map[string]*Connection),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Attach registers a new dashboard connection.
func (b *Broadcaster) Attach() *Connection {
	connection := &Connection{
		id: uuid.NewString(),
		C:  make(chan Notice, b.bufferSize),
	}

	b.mu.Lock()
	b.connections[connection.id] = connection
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Printf("dashboard connection attached id=%s", connection.id)
	}
	return connection
}

// Detach removes the connection from the registry. Safe to call more than
// once.
func (b *Broadcaster) Detach(connection *Connection) {
	b.mu.Lock()
	_, exists := b.connections[connection.id]
	delete(b.connections, connection.id)
	b.mu.Unlock()

	if exists && b.logger != nil {
		b.logger.Printf("dashboard connection detached id=%s", connection.id)
	}
}

// ConnectionCount reports how many dashboard clients are attached.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// HandleEvent is the event-bus subscriber entry point.
func (b *Broadcaster) HandleEvent(_ context.Context, event domain.Event) {
	notice := Notice{
		EventID:   event.ID,
		EventType: string(event.Type),
		Message:   event.Type.Describe(),
		Timestamp: event.OccurredAt.Format("2006-01-02T15:04:05.000Z07:00"),
		Data:      event.Data,
	}

	b.mu.RLock()
	targets := make([]*Connection, 0, len(b.connections))
	for _, connection := range b.connections {
		targets = append(targets, connection)
	}
	b.mu.RUnlock()

	for _, connection := range targets {
		b.offer(connection, notice)
	}
}

func (b *Broadcaster) offer(connection *Connection, notice Notice) {
	for {
		select {
		case connection.C <- notice:
			return
		default:
		}

		// Buffer full: shed the oldest pending notice and try again.
		select {
		case <-connection.C:
			if b.logger != nil {
				b.logger.Printf("dashboard notice dropped for slow client id=%s", connection.id)
			}
		default:
		}
	}
}
