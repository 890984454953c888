// Package controller orchestrates the conversation state engine: it routes
// inbound fragments to the merger, commands to the realtime channel or the
// HTTP fallback, and schedules persistence after every mutation.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arpangupta1805/web-assistant/internal/clock"
	"github.com/arpangupta1805/web-assistant/internal/merge"
	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/internal/notify"
	"github.com/arpangupta1805/web-assistant/internal/persist"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
	"github.com/arpangupta1805/web-assistant/pkg/metrics"
)

const errorReply = "Sorry, I encountered an error processing your request."

// Commander is the realtime command path.
type Commander interface {
	SendCommand(model.CommandRequest) error
	Connected() bool
}

// Fallback is the HTTP command path used while the channel is down.
type Fallback interface {
	ProcessCommand(ctx context.Context, command string) (*model.CommandResponse, error)
}

// Speaker reads a finalized reply aloud.
type Speaker interface {
	Speak(text string)
}

// URLOpener opens a URL in a new viewing context.
type URLOpener interface {
	Open(url string) error
}

// Controller owns the live message sequence. Collaborators only ever see
// read-only copies of it.
type Controller struct {
	merger   *merge.Merger
	persist  *persist.Manager
	channel  Commander
	fallback Fallback
	notes    *notify.Center
	speaker  Speaker
	opener   URLOpener
	clk      clock.Clock
	logger   *logger.Logger

	mu           sync.Mutex
	messages     []*model.Message
	weather      *model.Weather
	audioEnabled bool
	muted        bool
	onUpdate     func([]model.Message)
}

// Options configures a Controller.
type Options struct {
	Channel      Commander
	Fallback     Fallback
	Speaker      Speaker
	Opener       URLOpener
	AudioEnabled bool
}

// New creates a Controller.
func New(pm *persist.Manager, notes *notify.Center, clk clock.Clock, log *logger.Logger, opts Options) *Controller {
	return &Controller{
		merger:       merge.New(clk),
		persist:      pm,
		channel:      opts.Channel,
		fallback:     opts.Fallback,
		notes:        notes,
		speaker:      opts.Speaker,
		opener:       opts.Opener,
		clk:          clk,
		logger:       log,
		audioEnabled: opts.AudioEnabled,
	}
}

// AttachChannel binds the realtime command path. The channel's inbound
// handlers reference the controller, so it is wired after construction.
func (c *Controller) AttachChannel(ch Commander) {
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()
}

// SetUpdateListener registers the callback invoked with a snapshot after
// every mutation of the sequence.
func (c *Controller) SetUpdateListener(fn func([]model.Message)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Load rehydrates the conversation from the durable mirror. A corrupt
// snapshot starts an empty conversation and is never surfaced as a failure.
func (c *Controller) Load() {
	snap, err := c.persist.Load()
	if err != nil {
		if errors.Is(err, persist.ErrCorrupt) {
			c.logger.Warn("starting with empty conversation", zap.Error(err))
			return
		}
		c.logger.Error("failed to load conversation", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.messages = make([]*model.Message, len(snap.Messages))
	for i := range snap.Messages {
		msg := snap.Messages[i].Clone()
		// A snapshot taken mid-stream may hold an open message; it will
		// never receive its completion now, so freeze it.
		msg.Streaming = false
		c.messages[i] = &msg
	}
	c.mu.Unlock()

	c.logger.Info("conversation loaded",
		zap.Int("messages", len(snap.Messages)),
		zap.Bool("was_trimmed", snap.Trimmed),
	)
	c.notifyUpdate()
}

// Messages returns a read-only copy of the live sequence.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneMessages(c.messages)
}

// Weather returns the most recently fetched weather, if any.
func (c *Controller) Weather() *model.Weather {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.weather == nil {
		return nil
	}
	w := *c.weather
	return &w
}

// Connected reports whether the realtime channel is up.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	return ch != nil && ch.Connected()
}

// SetMuted toggles read-aloud muting.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// SetAudioEnabled toggles read-aloud entirely.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	c.audioEnabled = enabled
	c.mu.Unlock()
}

// SubmitCommand records a user message and routes the command to the
// realtime channel, falling back to HTTP when the channel is down. This is
// the single entry point for typed input and finalized dictation alike.
func (c *Controller) SubmitCommand(ctx context.Context, command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}

	now := c.clk.Now()
	c.mu.Lock()
	c.messages = append(c.messages, &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      model.RoleUser,
		Text:      command,
		CreatedAt: now,
	})
	ch := c.channel
	c.mu.Unlock()

	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	c.notifyUpdate()
	c.requestSave()

	if ch != nil && ch.Connected() {
		err := ch.SendCommand(model.CommandRequest{Command: command, Timestamp: now})
		if err == nil {
			metrics.RecordCommand("realtime", "ok")
			return
		}
		c.logger.Warn("realtime send failed, using HTTP fallback", zap.Error(err))
		metrics.RecordCommand("realtime", "error")
	}

	c.fallbackCommand(ctx, command)
}

// fallbackCommand routes a command over HTTP and applies the single reply
// as a complete, non-streaming fragment.
func (c *Controller) fallbackCommand(ctx context.Context, command string) {
	if c.fallback == nil {
		c.logger.Error("no fallback path configured, command dropped")
		return
	}

	resp, err := c.fallback.ProcessCommand(ctx, command)
	if err != nil {
		c.logger.Error("fallback command failed", zap.Error(err))
		metrics.RecordCommand("http", "error")
		c.ApplyFragment(model.Fragment{
			CompleteText: errorReply,
			IsNewMessage: true,
			IsComplete:   true,
		})
		return
	}

	text := resp.Response
	if !resp.Success {
		if text == "" {
			text = errorReply
		}
		metrics.RecordCommand("http", "error")
	} else {
		metrics.RecordCommand("http", "ok")
	}

	outcome := c.ApplyFragment(model.Fragment{
		CompleteText: text,
		IsNewMessage: true,
		IsComplete:   true,
	})
	if resp.Success && outcome.Message != nil && resp.Data != nil {
		c.mu.Lock()
		outcome.Message.Data = resp.Data
		c.mu.Unlock()
		c.requestSave()
	}
}

// ApplyFragment folds one reply fragment into the sequence and triggers the
// downstream side effects of a finalized message.
func (c *Controller) ApplyFragment(frag model.Fragment) merge.Outcome {
	c.mu.Lock()
	msgs, outcome := c.merger.Ingest(c.messages, frag)
	c.messages = msgs

	speak := ""
	if outcome.Finalized && c.audioEnabled && !c.muted && outcome.Message != nil {
		speak = cleanForSpeech(outcome.Message.Text)
	}
	c.mu.Unlock()

	switch {
	case outcome.Appended && outcome.Finalized:
		metrics.FragmentsTotal.WithLabelValues("complete").Inc()
	case outcome.Appended:
		metrics.FragmentsTotal.WithLabelValues("append").Inc()
	case outcome.Finalized:
		metrics.FragmentsTotal.WithLabelValues("finalize").Inc()
	default:
		metrics.FragmentsTotal.WithLabelValues("chunk").Inc()
	}
	if outcome.Appended {
		metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	}

	c.notifyUpdate()
	c.requestSave()

	if speak != "" && c.speaker != nil {
		c.speaker.Speak(speak)
	}

	return outcome
}

// HandleAction processes an action_completed event.
func (c *Controller) HandleAction(ev model.ActionEvent) {
	switch ev.Type {
	case model.ActionWeatherFetched:
		if ev.Weather != nil {
			c.mu.Lock()
			w := *ev.Weather
			c.weather = &w
			c.mu.Unlock()
			c.logger.Info("weather updated",
				zap.String("location", w.Location),
				zap.Float64("temp", w.Temp),
			)
		}
	case model.ActionWebsiteOpened, model.ActionMusicPlaying:
		// Already reported in the main reply.
	default:
		c.logger.Debug("ignoring unknown action", zap.String("type", string(ev.Type)))
	}
}

// HandleOpenURL opens the URL via the opener port and notifies the user.
func (c *Controller) HandleOpenURL(ev model.OpenURLEvent) {
	if ev.URL == "" {
		return
	}
	if c.opener != nil {
		if err := c.opener.Open(ev.URL); err != nil {
			c.logger.Warn("failed to open url", zap.String("url", ev.URL), zap.Error(err))
			c.notes.Push(notify.SeverityWarning, "could not open "+ev.URL)
			return
		}
	}
	c.notes.Push(notify.SeverityInfo, "opening "+ev.URL)
}

// Clear wipes the live sequence and the durable mirror.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()

	if err := c.persist.Clear(); err != nil {
		c.logger.Error("failed to clear stored history", zap.Error(err))
	}
	c.notifyUpdate()
	c.logger.Info("conversation history cleared")
}

// Flush writes any pending debounced save, for shutdown.
func (c *Controller) Flush() {
	if err := c.persist.Flush(); err != nil {
		c.logger.Error("final save failed", zap.Error(err))
	}
}

func (c *Controller) requestSave() {
	c.mu.Lock()
	snapshot := model.CloneMessages(c.messages)
	c.mu.Unlock()
	c.persist.RequestSave(snapshot)
}

func (c *Controller) notifyUpdate() {
	c.mu.Lock()
	fn := c.onUpdate
	var snapshot []model.Message
	if fn != nil {
		snapshot = model.CloneMessages(c.messages)
	}
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// cleanForSpeech strips emoji-range runes before read-aloud.
func cleanForSpeech(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 0x1F300 && r <= 0x1F6FF {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(cleaned)
}
