package ws

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"x-drive/backend/internal/game"
	"x-drive/backend/internal/world"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownMessage = errors.New("unknown message type")
)

// GetCurrentServerTime returns the wall clock in milliseconds.
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// GetMessageType reads only the type field of a message.
func GetMessageType(data []byte) (string, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return "", errors.Wrap(err, "parsing message")
	}
	return base.Type, nil
}

// ParseMessage decodes a client message by its type field.
func ParseMessage(data []byte) (Message, error) {
	messageType, err := GetMessageType(data)
	if err != nil {
		return nil, err
	}

	var msg Message
	switch messageType {
	case MessageTypeKey:
		msg = &KeyMessage{}
	case MessageTypeAction:
		msg = &ActionMessage{}
	case MessageTypeReset:
		msg = &ResetMessage{}
	case MessageTypePause:
		msg = &PauseMessage{}
	case MessageTypePing:
		msg = &PingMessage{}
	case MessageTypePong:
		msg = &PongMessage{}
	case "":
		return nil, errors.Wrap(ErrInvalidMessage, "missing type")
	default:
		return nil, errors.Wrapf(ErrUnknownMessage, "%q", messageType)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s message", messageType)
	}

	switch m := msg.(type) {
	case *KeyMessage:
		if m.Code == "" {
			return nil, errors.Wrap(ErrInvalidMessage, "key message without code")
		}
	case *ActionMessage:
		if m.Action == "" {
			return nil, errors.Wrap(ErrInvalidMessage, "action message without action")
		}
	}
	return msg, nil
}

func NewInfoMessage(message string, checkpoints int, paused bool) *InfoMessage {
	return &InfoMessage{
		Type:        MessageTypeInfo,
		Message:     message,
		Checkpoints: checkpoints,
		Paused:      paused,
	}
}

func NewPongMessage(clientTime int64) *PongMessage {
	return &PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

func NewErrorMessage(err error) *ErrorMessage {
	return &ErrorMessage{Type: MessageTypeError, Message: err.Error()}
}

// NewCreateMessage describes a render anchor.
func NewCreateMessage(obj world.Object) *CreateMessage {
	return &CreateMessage{
		Type:       MessageTypeCreate,
		ID:         obj.ID,
		ObjectType: obj.Kind,
		Index:      obj.Index,
		X:          obj.Position.X(),
		Y:          obj.Position.Y(),
		Z:          obj.Position.Z(),
		Heading:    obj.Heading,
		ServerTime: GetCurrentServerTime(),
	}
}

func NewFrameMessage(f game.Frame) *FrameMessage {
	return &FrameMessage{
		Type: MessageTypeFrame,
		Tick: f.Tick,
		Vehicle: VehicleMessage{
			X:       f.Vehicle.Position.X(),
			Y:       f.Vehicle.Position.Y(),
			Z:       f.Vehicle.Position.Z(),
			Heading: f.Vehicle.Heading,
		},
		Camera:     f.Camera,
		Telemetry:  f.Telemetry,
		Event:      f.Event,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewLapMessage reports the lap completed in f.
func NewLapMessage(f game.Frame) *LapMessage {
	msg := &LapMessage{
		Type:       MessageTypeLap,
		Lap:        f.Telemetry.Lap,
		LapTime:    f.Event.LapTime,
		NewBest:    f.Event.NewBest,
		ServerTime: GetCurrentServerTime(),
	}
	if f.Telemetry.BestLap != nil {
		msg.BestLap = *f.Telemetry.BestLap
	}
	return msg
}
