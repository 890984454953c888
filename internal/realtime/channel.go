// Package realtime provides the duplex event channel to the assistant
// server, backed by NATS. Events for one client arrive on a single
// subscription and are dispatched sequentially, so fragments are applied in
// arrival order.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
	"github.com/arpangupta1805/web-assistant/pkg/metrics"
)

const subjectPrefix = "assistant"

// Config holds channel connection configuration.
type Config struct {
	URL      string
	Token    string
	ClientID string
}

// Handlers receives inbound server events. Unset handlers drop their events.
type Handlers struct {
	OnFragment         func(model.Fragment)
	OnAction           func(model.ActionEvent)
	OnOpenURL          func(model.OpenURLEvent)
	OnConnectionChange func(connected bool)
}

// Channel wraps the NATS connection and the client's subscriptions.
type Channel struct {
	conn     *nats.Conn
	clientID string
	logger   *logger.Logger
	handlers Handlers
}

// Connect establishes the channel and subscribes to the client's inbound
// subjects. Reconnection is handled by the transport: the connection retries
// forever and buffers outbound publishes while down.
func Connect(cfg Config, handlers Handlers, log *logger.Logger) (*Channel, error) {
	ch := &Channel{clientID: cfg.ClientID, logger: log, handlers: handlers}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("realtime channel disconnected", zap.Error(err))
			metrics.SetRealtimeConnected(false)
			if handlers.OnConnectionChange != nil {
				handlers.OnConnectionChange(false)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("realtime channel reconnected")
			metrics.SetRealtimeConnected(true)
			if handlers.OnConnectionChange != nil {
				handlers.OnConnectionChange(true)
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("realtime channel error", zap.Error(err))
		}),
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect realtime channel: %w", err)
	}
	ch.conn = conn

	if err := ch.subscribe(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.SetRealtimeConnected(true)
	if handlers.OnConnectionChange != nil {
		handlers.OnConnectionChange(true)
	}

	return ch, nil
}

func (ch *Channel) subscribe() error {
	subs := []struct {
		event  string
		handle func([]byte)
	}{
		{"ai_response_chunk", ch.handleFragment},
		{"action_completed", ch.handleAction},
		{"open_url", ch.handleOpenURL},
	}

	for _, s := range subs {
		handle := s.handle
		if _, err := ch.conn.Subscribe(ch.subject(s.event), func(msg *nats.Msg) {
			handle(msg.Data)
		}); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.event, err)
		}
	}
	return nil
}

func (ch *Channel) subject(event string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, ch.clientID, event)
}

func (ch *Channel) handleFragment(data []byte) {
	var frag model.Fragment
	if err := json.Unmarshal(data, &frag); err != nil {
		ch.logger.Warn("dropping malformed fragment", zap.Error(err))
		return
	}
	if ch.handlers.OnFragment != nil {
		ch.handlers.OnFragment(frag)
	}
}

func (ch *Channel) handleAction(data []byte) {
	var ev model.ActionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		ch.logger.Warn("dropping malformed action event", zap.Error(err))
		return
	}
	if ch.handlers.OnAction != nil {
		ch.handlers.OnAction(ev)
	}
}

func (ch *Channel) handleOpenURL(data []byte) {
	var ev model.OpenURLEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		ch.logger.Warn("dropping malformed open_url event", zap.Error(err))
		return
	}
	if ch.handlers.OnOpenURL != nil {
		ch.handlers.OnOpenURL(ev)
	}
}

// SendCommand publishes a process_command message, fire-and-forget.
func (ch *Channel) SendCommand(req model.CommandRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	if err := ch.conn.Publish(ch.subject("process_command"), data); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

// Connected reports whether the channel is currently up.
func (ch *Channel) Connected() bool {
	return ch.conn != nil && ch.conn.IsConnected()
}

// Close drains and closes the connection.
func (ch *Channel) Close() {
	if ch.conn != nil {
		ch.conn.Close()
	}
}
