// Package model defines data structures for the assistant client.
package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation message.
//
// A user message is immutable after creation. An assistant message may be
// mutated in place while Streaming is true; it is frozen once the completion
// signal arrives and is never reopened.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Text      string          `json:"text"`
	Streaming bool            `json:"streaming"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"timestamp"`
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() Message {
	c := *m
	if m.Data != nil {
		c.Data = append(json.RawMessage(nil), m.Data...)
	}
	return c
}

// Snapshot is the durable mirror of the conversation. It fully supersedes
// any previously written snapshot; there is no versioning.
type Snapshot struct {
	Messages      []Message  `json:"messages"`
	SavedAt       time.Time  `json:"savedAt"`
	Trimmed       bool       `json:"trimmed,omitempty"`
	TrimmedAt     *time.Time `json:"trimmedAt,omitempty"`
	EmergencyTrim bool       `json:"emergencyTrim,omitempty"`
}

// CloneMessages returns a deep copy of a message sequence, used to hand
// read-only snapshots to collaborators without sharing mutable state.
func CloneMessages(msgs []*Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
