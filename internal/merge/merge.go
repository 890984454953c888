// Package merge folds streamed reply fragments into an ordered message
// sequence. It is the single place that locates the open assistant message,
// so correctness does not depend on call sites re-implementing the scan.
package merge

import (
	"github.com/google/uuid"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/model"
)

// Outcome reports what a call to Ingest did to the sequence.
type Outcome struct {
	// Appended is true when a new assistant message was added. This is the
	// only path that increases message count.
	Appended bool

	// Finalized is true when the touched message ended this call frozen
	// (is_complete on a streaming message, or a message born complete).
	// The controller uses it to trigger read-aloud and a persistence flush.
	Finalized bool

	// Message is the assistant message created or mutated by this call.
	Message *model.Message
}

// Merger applies fragments to a message sequence. It holds no conversation
// state of its own; the open message is re-derived on every call by scanning
// backward, so a missed close signal self-heals on the next fragment.
type Merger struct {
	clk   clock.Clock
	newID func() string
}

// New creates a Merger.
func New(clk clock.Clock) *Merger {
	return &Merger{
		clk:   clk,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Ingest applies one fragment and returns the updated sequence.
//
// Fragments must be applied in arrival order: the merge always targets the
// current last assistant message, so out-of-order delivery across the
// transport is not tolerated.
func (m *Merger) Ingest(msgs []*model.Message, frag model.Fragment) ([]*model.Message, Outcome) {
	open := openMessage(msgs)

	if frag.IsNewMessage || open == nil {
		// A fresh reply. If a stale open message is still streaming (the
		// completion signal never arrived), freeze it first so the
		// at-most-one-open invariant holds.
		if open != nil {
			open.Streaming = false
		}

		text := frag.CompleteText
		if text == "" {
			text = frag.Chunk
		}
		msg := &model.Message{
			ID:        m.newID(),
			Role:      model.RoleAssistant,
			Text:      text,
			Streaming: !frag.IsComplete,
			CreatedAt: m.clk.Now(),
		}
		msgs = append(msgs, msg)

		return msgs, Outcome{
			Appended:  true,
			Finalized: frag.IsComplete,
			Message:   msg,
		}
	}

	// Mutate the open message in place. A full-text update is authoritative
	// and replaces wholesale; a chunk appends.
	if frag.CompleteText != "" {
		open.Text = frag.CompleteText
	} else if frag.Chunk != "" {
		open.Text += frag.Chunk
	}
	open.Streaming = !frag.IsComplete

	return msgs, Outcome{
		Finalized: frag.IsComplete,
		Message:   open,
	}
}

// openMessage scans backward for the most recent assistant message and
// returns it only while it is still streaming. A frozen message is never
// treated as open, so fragments arriving after finalization start a new one.
func openMessage(msgs []*model.Message) *model.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			if msgs[i].Streaming {
				return msgs[i]
			}
			return nil
		}
	}
	return nil
}
