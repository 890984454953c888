package merge

import (
	"testing"
	"time"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/model"
)

func newTestMerger() *Merger {
	return New(clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func TestIngest_ChunkThenComplete(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	msgs, out := m.Ingest(msgs, model.Fragment{Chunk: "Hel", IsNewMessage: true})
	if !out.Appended || out.Finalized {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	msgs, out = m.Ingest(msgs, model.Fragment{Chunk: "lo", IsComplete: true})
	if out.Appended {
		t.Fatalf("second chunk should not append: %+v", out)
	}
	if !out.Finalized {
		t.Fatalf("expected finalize on is_complete")
	}

	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	if msgs[0].Text != "Hello" {
		t.Fatalf("text = %q want %q", msgs[0].Text, "Hello")
	}
	if msgs[0].Streaming {
		t.Fatalf("message should be frozen")
	}
}

func TestIngest_OrderPreservation(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: "a", IsNewMessage: true})
	for _, c := range []string{"b", "c", "d"} {
		msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: c})
	}
	if msgs[0].Text != "abcd" {
		t.Fatalf("text = %q want %q", msgs[0].Text, "abcd")
	}
}

func TestIngest_CompleteTextOverridesChunks(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: "partial gar", IsNewMessage: true})
	msgs, out := m.Ingest(msgs, model.Fragment{CompleteText: "The full answer.", IsComplete: true})

	if msgs[0].Text != "The full answer." {
		t.Fatalf("text = %q, full-text update should replace wholesale", msgs[0].Text)
	}
	if !out.Finalized {
		t.Fatalf("expected finalize")
	}
}

func TestIngest_FrozenMessageNeverReopened(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: "first", IsNewMessage: true, IsComplete: true})

	// A late fragment without is_new_message must start a fresh message,
	// not mutate the frozen one.
	msgs, out := m.Ingest(msgs, model.Fragment{Chunk: "second"})
	if !out.Appended {
		t.Fatalf("expected append for fragment after finalization")
	}
	if len(msgs) != 2 {
		t.Fatalf("expected two messages, got %d", len(msgs))
	}
	if msgs[0].Text != "first" {
		t.Fatalf("frozen message mutated: %q", msgs[0].Text)
	}
	if msgs[1].Text != "second" || !msgs[1].Streaming {
		t.Fatalf("new message wrong: %+v", msgs[1])
	}
}

func TestIngest_NewMessageFreezesStaleOpen(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	// Completion signal for the first reply never arrives.
	msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: "stuck", IsNewMessage: true})
	msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: "next", IsNewMessage: true})

	streaming := 0
	for _, msg := range msgs {
		if msg.Role == model.RoleAssistant && msg.Streaming {
			streaming++
		}
	}
	if streaming != 1 {
		t.Fatalf("at-most-one-open violated: %d streaming messages", streaming)
	}
	if msgs[0].Streaming {
		t.Fatalf("stale open message should have been frozen")
	}
}

func TestIngest_EmptyFragmentUpdatesStreamingOnly(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	msgs, _ = m.Ingest(msgs, model.Fragment{Chunk: "text", IsNewMessage: true})
	msgs, out := m.Ingest(msgs, model.Fragment{IsComplete: true})

	if msgs[0].Text != "text" {
		t.Fatalf("empty fragment mutated text: %q", msgs[0].Text)
	}
	if msgs[0].Streaming {
		t.Fatalf("empty fragment with is_complete should freeze")
	}
	if !out.Finalized {
		t.Fatalf("expected finalize")
	}
}

func TestIngest_TargetsLastAssistantAcrossUserMessages(t *testing.T) {
	m := newTestMerger()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	msgs := []*model.Message{
		{ID: "u1", Role: model.RoleUser, Text: "hi", CreatedAt: now},
	}
	msgs, out := m.Ingest(msgs, model.Fragment{Chunk: "reply", IsNewMessage: true})
	if !out.Appended || len(msgs) != 2 {
		t.Fatalf("expected append after user message")
	}

	// A user message interleaved after the open assistant message does not
	// hide it: the scan skips non-assistant roles.
	msgs = append(msgs, &model.Message{ID: "u2", Role: model.RoleUser, Text: "more", CreatedAt: now})
	msgs, out = m.Ingest(msgs, model.Fragment{Chunk: "!", IsComplete: true})
	if out.Appended {
		t.Fatalf("should have mutated open message, not appended")
	}
	if msgs[1].Text != "reply!" {
		t.Fatalf("text = %q want %q", msgs[1].Text, "reply!")
	}
}

func TestIngest_BornCompleteMessageIsFinalized(t *testing.T) {
	m := newTestMerger()
	var msgs []*model.Message

	// HTTP fallback path: a single complete reply in one fragment.
	msgs, out := m.Ingest(msgs, model.Fragment{
		CompleteText: "done", IsNewMessage: true, IsComplete: true,
	})
	if !out.Appended || !out.Finalized {
		t.Fatalf("outcome = %+v, want appended and finalized", out)
	}
	if msgs[0].Streaming {
		t.Fatalf("born-complete message should not stream")
	}
}
