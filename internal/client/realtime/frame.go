package realtime

import (
	go_json "github.com/goccy/go-json"

	"github.com/garrettladley/notisync/internal/notification"
)

type FrameType string

const (
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FramePing        FrameType = "ping"

	FrameConnected FrameType = "connected"
	FrameMessage   FrameType = "message"
	FramePong      FrameType = "pong"
	FrameError     FrameType = "error"
)

// Frame is the envelope for every text message on the push connection, in
// both directions.
type Frame struct {
	Type    FrameType          `json:"type"`
	Topic   notification.Topic `json:"topic,omitempty"`
	Payload go_json.RawMessage `json:"payload,omitempty"`
	Message string             `json:"message,omitempty"`
}

func EncodeFrame(f Frame) ([]byte, error) {
	return go_json.Marshal(f)
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := go_json.Unmarshal(data, &f)
	return f, err
}

// MessageFrame wraps payload for delivery on topic.
func MessageFrame(topic notification.Topic, payload any) (Frame, error) {
	data, err := go_json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameMessage, Topic: topic, Payload: data}, nil
}
