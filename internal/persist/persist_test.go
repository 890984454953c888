package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/internal/store"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
)

const testKey = "assistant_chat_history"

func newTestManager(st store.Store, budget int64) (*Manager, *clock.Fake) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	m := New(st, clk, logger.NewNop(), Options{
		Key:      testKey,
		Budget:   budget,
		Debounce: 100 * time.Millisecond,
	})
	return m, clk
}

func makeMessages(n int) []model.Message {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	msgs := make([]model.Message, n)
	for i := range msgs {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs[i] = model.Message{
			ID:        fmt.Sprintf("msg-%03d", i),
			Role:      role,
			Text:      fmt.Sprintf("message number %d with some padding for size", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return msgs
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m, _ := newTestManager(store.NewMem(0), 1<<20)
	in := makeMessages(6)

	if err := m.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(snap.Messages) != len(in) {
		t.Fatalf("got %d messages, want %d", len(snap.Messages), len(in))
	}
	for i := range in {
		got, want := snap.Messages[i], in[i]
		if got.ID != want.ID || got.Role != want.Role || got.Text != want.Text {
			t.Fatalf("message %d mismatch: got %+v want %+v", i, got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("message %d timestamp: got %v want %v", i, got.CreatedAt, want.CreatedAt)
		}
	}
	if snap.Trimmed {
		t.Fatalf("untrimmed save reported trimmed")
	}
}

func TestLoad_AbsentKeyReturnsEmpty(t *testing.T) {
	m, _ := newTestManager(store.NewMem(0), 1<<20)

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Messages) != 0 {
		t.Fatalf("expected empty snapshot, got %d messages", len(snap.Messages))
	}
}

func TestLoad_CorruptDocument(t *testing.T) {
	st := store.NewMem(0)
	st.Set(testKey, []byte("{not json"))
	m, _ := newTestManager(st, 1<<20)

	_, err := m.Load()
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSave_TrimsOldestToSeventyPercent(t *testing.T) {
	st := store.NewMem(0)
	m, _ := newTestManager(st, 5000)

	// Another tenant already holds most of the budget.
	filler := make([]byte, 4800)
	if err := st.Set("other_tenant", filler); err != nil {
		t.Fatalf("prep: %v", err)
	}

	in := makeMessages(100)
	if err := m.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.Trimmed {
		t.Fatalf("expected trimmed snapshot")
	}
	if snap.TrimmedAt == nil {
		t.Fatalf("trimmedAt missing")
	}
	if len(snap.Messages) != 70 {
		t.Fatalf("kept %d messages, want 70", len(snap.Messages))
	}
	// Tail retention: exactly the last 70, in original order.
	for i, msg := range snap.Messages {
		want := fmt.Sprintf("msg-%03d", i+30)
		if msg.ID != want {
			t.Fatalf("message %d = %s, want %s", i, msg.ID, want)
		}
	}
}

func TestSave_EmergencyTrimOnWriteFailure(t *testing.T) {
	st := store.NewMem(0)
	st.FailSets = 1
	m, _ := newTestManager(st, 1<<20)

	if err := m.Save(makeMessages(80)); err != nil {
		t.Fatalf("save should recover via emergency trim: %v", err)
	}

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.EmergencyTrim {
		t.Fatalf("expected emergencyTrim flag")
	}
	if len(snap.Messages) != 50 {
		t.Fatalf("kept %d messages, want 50", len(snap.Messages))
	}
	if snap.Messages[0].ID != "msg-030" {
		t.Fatalf("first kept = %s, want msg-030", snap.Messages[0].ID)
	}
}

func TestSave_UnrecoverableAfterBothWritesFail(t *testing.T) {
	st := store.NewMem(0)
	st.FailSets = 2
	m, _ := newTestManager(st, 1<<20)

	err := m.Save(makeMessages(10))
	if !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("expected ErrUnrecoverable, got %v", err)
	}
}

func TestSave_TrimmedSnapshotFitsBudget(t *testing.T) {
	st := store.NewMem(0)
	budget := int64(16000)
	m, _ := newTestManager(st, budget)

	st.Set("other_tenant", make([]byte, 4000))

	if err := m.Save(makeMessages(100)); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.Trimmed {
		t.Fatalf("expected trim with this occupancy")
	}

	data, _ := st.Get(testKey)
	used := int64(4000 + len("other_tenant"))
	if used+int64(len(data))+int64(len(testKey)) > budget {
		t.Fatalf("written snapshot exceeds budget: occupancy %d + snapshot %d", used, len(data))
	}
}

func TestRequestSave_DebounceCollapsesToLatest(t *testing.T) {
	st := store.NewMem(0)
	m, clk := newTestManager(st, 1<<20)

	for i := 1; i <= 5; i++ {
		m.RequestSave(makeMessages(i))
		clk.Advance(10 * time.Millisecond)
	}

	if data, _ := st.Get(testKey); data != nil {
		t.Fatalf("write happened before debounce window elapsed")
	}

	clk.Advance(100 * time.Millisecond)

	data, _ := st.Get(testKey)
	if data == nil {
		t.Fatalf("expected write after debounce window")
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Messages) != 5 {
		t.Fatalf("wrote %d messages, want latest state with 5", len(snap.Messages))
	}
	if clk.Pending() != 0 {
		t.Fatalf("timers left armed: %d", clk.Pending())
	}
}

func TestFlush_WritesPendingImmediately(t *testing.T) {
	st := store.NewMem(0)
	m, _ := newTestManager(st, 1<<20)

	m.RequestSave(makeMessages(3))
	if err := m.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Messages) != 3 {
		t.Fatalf("flushed %d messages, want 3", len(snap.Messages))
	}

	// Nothing pending now.
	if err := m.Flush(); err != nil {
		t.Fatalf("idempotent flush: %v", err)
	}
}

func TestClear_RemovesSnapshotAndPendingSave(t *testing.T) {
	st := store.NewMem(0)
	m, clk := newTestManager(st, 1<<20)

	m.Save(makeMessages(4))
	m.RequestSave(makeMessages(8))
	if err := m.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	clk.Advance(time.Second)

	data, _ := st.Get(testKey)
	if data != nil {
		t.Fatalf("snapshot survived clear: %q", data)
	}
}
