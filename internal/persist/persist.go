// Package persist owns the durable mirror of the conversation: its
// serialization format, capacity accounting, and eviction policy.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/internal/store"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
	"github.com/arpangupta1805/web-assistant/pkg/metrics"
)

var (
	// ErrCorrupt is returned by Load when the stored snapshot cannot be
	// parsed. The caller starts from an empty conversation.
	ErrCorrupt = errors.New("persist: stored snapshot is corrupt")

	// ErrUnrecoverable is returned by Save when both the trimmed and the
	// emergency write failed. The in-memory sequence stays authoritative.
	ErrUnrecoverable = errors.New("persist: snapshot could not be written")
)

const (
	// trimKeep is the fraction of messages retained on a budget trim.
	trimKeep = 0.7

	// emergencyKeep is the message count of the emergency snapshot written
	// when the store rejects a pre-checked write.
	emergencyKeep = 50
)

// Options configures a Manager.
type Options struct {
	// Key is the store key holding the snapshot document.
	Key string

	// Budget is the serialized-byte budget, chosen conservatively below
	// the store's own quota.
	Budget int64

	// Debounce is the window within which save requests collapse.
	Debounce time.Duration
}

// Manager mirrors the conversation into a byte store. It never mutates live
// messages; callers hand it read-only copies at save time.
type Manager struct {
	store  store.Store
	clk    clock.Clock
	logger *logger.Logger
	opts   Options

	mu      sync.Mutex
	timer   clock.Timer
	pending []model.Message
	armed   bool
}

// New creates a Manager.
func New(st store.Store, clk clock.Clock, log *logger.Logger, opts Options) *Manager {
	return &Manager{
		store:  st,
		clk:    clk,
		logger: log,
		opts:   opts,
	}
}

// RequestSave schedules a debounced save of the given messages. Requests
// within the debounce window collapse to a single write of the latest state;
// the pending timer is cancelled and replaced, never stacked.
func (m *Manager) RequestSave(msgs []model.Message) {
	m.mu.Lock()
	m.pending = msgs
	m.armed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clk.AfterFunc(m.opts.Debounce, m.flushPending)
	m.mu.Unlock()
}

func (m *Manager) flushPending() {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	msgs := m.pending
	m.pending = nil
	m.armed = false
	m.timer = nil
	m.mu.Unlock()

	if err := m.Save(msgs); err != nil {
		m.logger.Error("debounced save failed", zap.Error(err))
	}
}

// Flush writes any pending debounced state immediately, for shutdown.
func (m *Manager) Flush() error {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return nil
	}
	msgs := m.pending
	m.pending = nil
	m.armed = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	return m.Save(msgs)
}

// Save serializes and writes a snapshot of the given messages, trimming to
// fit the byte budget and falling back to an emergency snapshot when the
// store rejects the write anyway.
func (m *Manager) Save(msgs []model.Message) error {
	start := time.Now()
	now := m.clk.Now()

	snap := model.Snapshot{Messages: msgs, SavedAt: now}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	// Occupancy is recomputed from the whole store: other tenants of the
	// same storage realm consume the same quota.
	used, err := m.store.UsedBytes()
	if err != nil {
		return fmt.Errorf("failed to compute store occupancy: %w", err)
	}
	metrics.StoreUsedBytes.Set(float64(used))

	result := "ok"
	if used+int64(len(data))+int64(len(m.opts.Key)) > m.opts.Budget {
		keep := int(float64(len(msgs)) * trimKeep)
		snap = model.Snapshot{
			Messages:  msgs[len(msgs)-keep:],
			SavedAt:   now,
			Trimmed:   true,
			TrimmedAt: &now,
		}
		if data, err = json.Marshal(snap); err != nil {
			return fmt.Errorf("failed to serialize trimmed snapshot: %w", err)
		}
		result = "trimmed"
		m.logger.Info("history trimmed to fit storage budget",
			zap.Int("kept", keep),
			zap.Int("dropped", len(msgs)-keep),
		)
	}

	if err := m.store.Set(m.opts.Key, data); err != nil {
		m.logger.Warn("snapshot write rejected, attempting emergency trim", zap.Error(err))
		if err := m.saveEmergency(msgs, now); err != nil {
			metrics.RecordSave("unrecoverable", time.Since(start).Seconds(), len(msgs))
			return err
		}
		metrics.RecordSave("emergency", time.Since(start).Seconds(), min(len(msgs), emergencyKeep))
		return nil
	}

	metrics.RecordSave(result, time.Since(start).Seconds(), len(snap.Messages))
	return nil
}

func (m *Manager) saveEmergency(msgs []model.Message, now time.Time) error {
	if len(msgs) > emergencyKeep {
		msgs = msgs[len(msgs)-emergencyKeep:]
	}
	snap := model.Snapshot{
		Messages:      msgs,
		SavedAt:       now,
		EmergencyTrim: true,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize emergency snapshot: %w", err)
	}

	if err := m.store.Set(m.opts.Key, data); err != nil {
		m.logger.Error("emergency snapshot write failed, history lives in memory only", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}

	m.logger.Warn("emergency snapshot written", zap.Int("messages", len(msgs)))
	return nil
}

// Load reads the stored snapshot. An absent key yields an empty snapshot;
// an unparseable one yields ErrCorrupt and the caller starts empty.
func (m *Manager) Load() (model.Snapshot, error) {
	data, err := m.store.Get(m.opts.Key)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if data == nil {
		return model.Snapshot{}, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("stored snapshot is corrupt, starting empty", zap.Error(err))
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return snap, nil
}

// Clear removes the stored snapshot and drops any pending debounced save.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.pending = nil
	m.armed = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	return m.store.Delete(m.opts.Key)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
