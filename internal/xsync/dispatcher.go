package xsync

import (
	"log/slog"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xslog"
)

// MessageDispatcher turns raw frames into typed payloads and fans them out to
// the topic's listeners. A frame that fails to decode is dropped and logged;
// nothing it carries reaches a listener.
type MessageDispatcher struct {
	registry *SubscriptionRegistry
	logger   *slog.Logger
}

var _ FrameHandler = (*MessageDispatcher)(nil)

func NewMessageDispatcher(registry *SubscriptionRegistry, logger *slog.Logger) *MessageDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageDispatcher{registry: registry, logger: logger}
}

func (d *MessageDispatcher) HandleFrame(data []byte) {
	frame, err := realtime.DecodeFrame(data)
	if err != nil {
		d.logger.Warn("dropping malformed frame", xslog.Error(err), xslog.Data(data))
		return
	}

	switch frame.Type {
	case realtime.FrameMessage:
		d.dispatch(frame)
	case realtime.FrameConnected, realtime.FramePong:
		d.logger.Debug("control frame", xslog.FrameType(string(frame.Type)))
	case realtime.FrameError:
		d.logger.Warn("server reported error", xslog.Topic(frame.Topic.String()), slog.String("message", frame.Message))
	default:
		d.logger.Warn("dropping frame of unknown type", xslog.FrameType(string(frame.Type)))
	}
}

// Dispatch delivers an already decoded payload on topic. Polling and tests use
// it to feed the same listeners as the push path.
func (d *MessageDispatcher) Dispatch(topic notification.Topic, payload any) {
	entries := d.registry.listeners(topic)
	for _, e := range entries {
		if e.removed.Load() {
			continue
		}
		d.invoke(topic, e, payload)
	}
}

func (d *MessageDispatcher) dispatch(frame realtime.Frame) {
	if !frame.Topic.Valid() {
		d.logger.Warn("dropping frame for unknown topic", xslog.Topic(frame.Topic.String()))
		return
	}

	payload, err := notification.Decode(frame.Topic, frame.Payload)
	if err != nil {
		d.logger.Warn("dropping undecodable payload",
			xslog.Topic(frame.Topic.String()),
			xslog.Error(err),
			xslog.Data(frame.Payload),
		)
		return
	}

	d.Dispatch(frame.Topic, payload)
}

func (d *MessageDispatcher) invoke(topic notification.Topic, e *listenerEntry, payload any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked",
				xslog.Topic(topic.String()),
				xslog.ErrorGroupWithStack(r),
			)
		}
	}()
	e.fn(payload)
}
