package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smukkama/prayer-server/internal/prayer"
)

// MessageType represents the type of message
type MessageType string

const (
	// Client to Server
	MsgTypeSubscribe MessageType = "subscribe"
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to Client
	MsgTypeAck       MessageType = "ack"
	MsgTypeCountdown MessageType = "countdown"
	MsgTypeAlert     MessageType = "alert"
)

// MaxDisplayLength bounds the display name a client may register
const MaxDisplayLength = 64

// BaseMessage is the common structure for all messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// SubscribeMessage is sent by a display on connection
type SubscribeMessage struct {
	Type    MessageType `json:"type"`
	Display string      `json:"display"`
}

// KeepaliveMessage is sent by a display to hold the connection open
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the server in response to client messages
type AckMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// AckStatus constants
const (
	AckStatusSubscribed = "subscribed"
	AckStatusAlive      = "alive"
	AckStatusError      = "error"
)

// CountdownMessage carries one evaluated countdown state
type CountdownMessage struct {
	Type      MessageType `json:"type"`
	Status    string      `json:"status"`
	Name      string      `json:"name,omitempty"`
	Time      string      `json:"time,omitempty"`
	Remaining string      `json:"remaining"`
	NextDay   bool        `json:"next_day"`
}

// AlertMessage tells displays that a prayer time was reached
type AlertMessage struct {
	Type  MessageType `json:"type"`
	Name  string      `json:"name"`
	Time  string      `json:"time"`
	Sound string      `json:"sound,omitempty"`
}

// ParseMessage parses a JSON line into the appropriate client message type
func ParseMessage(data []byte) (any, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeSubscribe:
		var msg SubscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid subscribe message: %w", err)
		}
		if err := validateSubscribe(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeKeepalive:
		return &KeepaliveMessage{Type: MsgTypeKeepalive}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

func validateSubscribe(msg *SubscribeMessage) error {
	msg.Display = strings.TrimSpace(msg.Display)
	if msg.Display == "" {
		return fmt.Errorf("display is required")
	}
	if len(msg.Display) > MaxDisplayLength {
		return fmt.Errorf("display name longer than %d bytes", MaxDisplayLength)
	}
	return nil
}

// EncodeLine encodes a message as one newline-terminated JSON line
func EncodeLine(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// NewErrorAck creates an error acknowledgment carrying the reason
func NewErrorAck(err error) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: AckStatusError,
		Error:  err.Error(),
	}
}

// NewCountdownMessage converts an evaluated state for the wire
func NewCountdownMessage(s prayer.State) *CountdownMessage {
	msg := &CountdownMessage{
		Type:      MsgTypeCountdown,
		Status:    s.Status.String(),
		Remaining: s.RemainingString(),
		NextDay:   s.NextDay,
	}
	if s.Status == prayer.StatusActive {
		msg.Name = string(s.Name)
		msg.Time = s.Time.String()
	}
	return msg
}

// NewAlertMessage creates a display alert
func NewAlertMessage(name prayer.TimePoint, at prayer.Clock, sound string) *AlertMessage {
	return &AlertMessage{
		Type:  MsgTypeAlert,
		Name:  string(name),
		Time:  at.String(),
		Sound: sound,
	}
}
