package notify

import (
	"testing"
	"time"

	"github.com/arpangupta1805/web-assistant/internal/clock"
)

func TestPushAndExpiry(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewCenter(clk, 5*time.Second)

	var seen []Notification
	c.SetListener(func(n Notification) { seen = append(seen, n) })

	first := c.Push(SeverityInfo, "opening example.com")
	clk.Advance(2 * time.Second)
	c.Push(SeverityWarning, "stopped listening due to silence")

	if len(seen) != 2 {
		t.Fatalf("listener saw %d notifications, want 2", len(seen))
	}
	if got := c.Active(); len(got) != 2 {
		t.Fatalf("active = %d, want 2", len(got))
	}

	// First expires at +5s, second at +7s.
	clk.Advance(3 * time.Second)
	active := c.Active()
	if len(active) != 1 {
		t.Fatalf("active after first expiry = %d, want 1", len(active))
	}
	if active[0].ID == first.ID {
		t.Fatalf("wrong notification expired")
	}

	clk.Advance(2 * time.Second)
	if len(c.Active()) != 0 {
		t.Fatalf("notifications should all have expired")
	}
}

func TestNotificationFields(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewCenter(clk, time.Minute)

	n := c.Push(SeverityError, "microphone permission denied")
	if n.ID == "" {
		t.Fatalf("missing id")
	}
	if n.Severity != SeverityError || n.Message != "microphone permission denied" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if !n.CreatedAt.Equal(clk.Now()) {
		t.Fatalf("createdAt = %v, want clock time", n.CreatedAt)
	}
}
