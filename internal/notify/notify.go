// Package notify provides the ephemeral, self-expiring notification queue.
// Notifications are never persisted.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/pkg/metrics"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a transient user-visible message.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Listener receives notifications as they are pushed.
type Listener func(Notification)

// Center is a TTL queue of notifications. Each entry expires on its own
// timer; expiry removes it from the active set.
type Center struct {
	clk clock.Clock
	ttl time.Duration

	mu       sync.Mutex
	active   []Notification
	timers   map[string]clock.Timer
	listener Listener
}

// NewCenter creates a Center whose notifications live for ttl.
func NewCenter(clk clock.Clock, ttl time.Duration) *Center {
	return &Center{
		clk:    clk,
		ttl:    ttl,
		timers: make(map[string]clock.Timer),
	}
}

// SetListener registers the single listener invoked on every push.
func (c *Center) SetListener(fn Listener) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Push adds a notification and schedules its expiry.
func (c *Center) Push(severity Severity, message string) Notification {
	n := Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Message:   message,
		Severity:  severity,
		CreatedAt: c.clk.Now(),
	}

	c.mu.Lock()
	c.active = append(c.active, n)
	c.timers[n.ID] = c.clk.AfterFunc(c.ttl, func() { c.expire(n.ID) })
	listener := c.listener
	c.mu.Unlock()

	metrics.NotificationsTotal.WithLabelValues(string(severity)).Inc()

	if listener != nil {
		listener(n)
	}
	return n
}

// Active returns the notifications that have not yet expired.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	return out
}

func (c *Center) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, id)
	for i, n := range c.active {
		if n.ID == id {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return
		}
	}
}
