// Package dictation manages the lifecycle of one voice-capture attempt as a
// state machine over a transcript stream and a silence timer.
package dictation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/notify"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
	"github.com/arpangupta1805/web-assistant/pkg/metrics"
)

// State is the dictation session state.
type State string

const (
	StateIdle            State = "idle"
	StateListening       State = "listening"
	StateAwaitingSilence State = "awaiting_silence"

	// StateFinalized is transient: it is observable inside Finalize only;
	// the session rests in Idle afterwards.
	StateFinalized State = "finalized"
)

var (
	// ErrEmptyTranscript is returned by Finalize when there is nothing to
	// submit.
	ErrEmptyTranscript = errors.New("dictation: transcript is empty")

	// ErrCaptureUnavailable is returned by Capture.Start when no capture
	// device exists or permission is denied.
	ErrCaptureUnavailable = errors.New("dictation: capture unavailable")
)

// Capture is the speech capture collaborator. Transcript events flow back
// through Session.OnTranscript.
type Capture interface {
	// Start begins capturing. It fails when the device is unavailable or
	// permission is denied.
	Start() error

	// Stop halts capturing. Stopping an inactive capture is a no-op.
	Stop() error
}

// Config holds dictation settings.
type Config struct {
	// SilenceTimeout is the inactivity window after which an active
	// session auto-stops.
	SilenceTimeout time.Duration

	// AutoStop enables silence-based auto-termination. Disabling it
	// suppresses timer arming but changes no other transition.
	AutoStop bool
}

// Session is the dictation state machine. Exactly one live session exists
// per client.
type Session struct {
	capture Capture
	clk     clock.Clock
	notes   *notify.Center
	logger  *logger.Logger
	submit  func(transcript string)

	mu         sync.Mutex
	cfg        Config
	state      State
	transcript string
	silence    clock.Timer
}

// NewSession creates an idle Session. submit receives the finalized
// transcript as a user command.
func NewSession(capture Capture, clk clock.Clock, notes *notify.Center, log *logger.Logger, cfg Config, submit func(string)) *Session {
	return &Session{
		capture: capture,
		clk:     clk,
		notes:   notes,
		logger:  log,
		submit:  submit,
		cfg:     cfg,
		state:   StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the current transcript.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// SetAutoStop updates the auto-stop flag at runtime. An already armed
// silence timer keeps running; the next transcript update applies the flag.
func (s *Session) SetAutoStop(enabled bool) {
	s.mu.Lock()
	s.cfg.AutoStop = enabled
	s.mu.Unlock()
}

// Start transitions Idle -> Listening and resets the transcript. A capture
// failure keeps the session Idle and surfaces a notification; the session is
// never left Listening with a dead capture device.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.capture.Start(); err != nil {
		s.notes.Push(notify.SeverityError, "could not start listening: "+err.Error())
		metrics.DictationSessionsTotal.WithLabelValues("capture_error").Inc()
		return fmt.Errorf("capture start failed: %w", err)
	}

	s.mu.Lock()
	s.state = StateListening
	s.transcript = ""
	s.mu.Unlock()

	s.logger.Debug("dictation started")
	return nil
}

// OnTranscript applies a transcript update. Valid only while Listening or
// AwaitingSilence; updates in other states are dropped. Every update cancels
// the pending silence timer; a non-empty transcript re-arms it when
// auto-stop is enabled.
func (s *Session) OnTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateListening && s.state != StateAwaitingSilence {
		return
	}

	s.transcript = text
	s.cancelSilenceLocked()

	if s.cfg.AutoStop && text != "" {
		s.silence = s.clk.AfterFunc(s.cfg.SilenceTimeout, s.onSilence)
		s.state = StateAwaitingSilence
	} else {
		s.state = StateListening
	}
}

// onSilence fires when the silence window elapses with no further updates.
func (s *Session) onSilence() {
	s.mu.Lock()
	if s.state != StateAwaitingSilence {
		s.mu.Unlock()
		return
	}
	s.silence = nil
	s.stopLocked()
	s.mu.Unlock()

	s.notes.Push(notify.SeverityWarning, "stopped listening due to silence")
	metrics.DictationSessionsTotal.WithLabelValues("silence").Inc()
	s.logger.Info("dictation auto-stopped on silence")
}

// Stop halts capture and returns to Idle. Idempotent: stopping an Idle
// session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.mu.Unlock()

	metrics.DictationSessionsTotal.WithLabelValues("manual").Inc()
}

// stopLocked cancels any pending timer, halts capture, and rests at Idle.
func (s *Session) stopLocked() {
	s.cancelSilenceLocked()
	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("capture stop failed", zap.Error(err))
	}
	s.state = StateIdle
}

// Finalize submits the transcript as a user command, clears it, and stops.
// Valid only when the transcript is non-empty.
func (s *Session) Finalize() error {
	s.mu.Lock()
	if s.transcript == "" {
		s.mu.Unlock()
		return ErrEmptyTranscript
	}
	text := s.transcript
	s.transcript = ""
	s.state = StateFinalized
	s.stopLocked()
	s.mu.Unlock()

	metrics.DictationSessionsTotal.WithLabelValues("finalized").Inc()
	s.submit(text)
	return nil
}

// Toggle alternates Start and Stop based on the current state, backing the
// single microphone control.
func (s *Session) Toggle() error {
	if s.State() == StateIdle {
		return s.Start()
	}
	s.Stop()
	return nil
}

func (s *Session) cancelSilenceLocked() {
	if s.silence != nil {
		s.silence.Stop()
		s.silence = nil
	}
}
