package ws

import (
	"x-drive/backend/internal/camera"
	"x-drive/backend/internal/lap"
	"x-drive/backend/internal/telemetry"
	"x-drive/backend/internal/world"
)

// Message types
const (
	// client -> server
	MessageTypeKey    = "key"
	MessageTypeAction = "action"
	MessageTypeReset  = "reset"
	MessageTypePause  = "pause"
	MessageTypePing   = "ping" // also sent by the server as a keepalive
	MessageTypePong   = "pong"

	// server -> client
	MessageTypeInfo   = "info"
	MessageTypeCreate = "create"
	MessageTypeFrame  = "frame"
	MessageTypeLap    = "lap"
	MessageTypeError  = "error"
)

// Message is any decoded websocket message.
type Message interface {
	MessageType() string
}

// KeyMessage carries a physical key event (KeyboardEvent.code).
type KeyMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Pressed bool   `json:"pressed"`
}

// ActionMessage sets a logical control directly, for touch and gamepad clients.
type ActionMessage struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Pressed bool   `json:"pressed"`
}

type ResetMessage struct {
	Type string `json:"type"`
}

type PauseMessage struct {
	Type   string `json:"type"`
	Paused bool   `json:"paused"`
}

type PingMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time,omitempty"`
	ServerTime int64  `json:"server_time,omitempty"`
}

type PongMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
	ServerTime int64  `json:"server_time"`
}

// InfoMessage greets a new client and describes the track.
type InfoMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Checkpoints int    `json:"checkpoints,omitempty"`
	Paused      bool   `json:"paused"`
}

// CreateMessage mounts one render anchor on the client.
type CreateMessage struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	ObjectType world.ObjectKind `json:"object_type"`
	Index      int              `json:"index"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Z          float64          `json:"z"`
	Heading    float64          `json:"heading"`
	ServerTime int64            `json:"server_time"`
}

// VehicleMessage is the chassis pose.
type VehicleMessage struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

// FrameMessage is one simulated frame.
type FrameMessage struct {
	Type       string             `json:"type"`
	Tick       uint64             `json:"tick"`
	Vehicle    VehicleMessage     `json:"vehicle"`
	Camera     camera.Pose        `json:"camera"`
	Telemetry  telemetry.Snapshot `json:"telemetry"`
	Event      lap.Event          `json:"event"`
	ServerTime int64              `json:"server_time"`
}

// LapMessage announces a completed lap.
type LapMessage struct {
	Type       string  `json:"type"`
	Lap        int     `json:"lap"`
	LapTime    float64 `json:"lap_time"`
	BestLap    float64 `json:"best_lap"`
	NewBest    bool    `json:"new_best"`
	ServerTime int64   `json:"server_time"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m *KeyMessage) MessageType() string    { return MessageTypeKey }
func (m *ActionMessage) MessageType() string { return MessageTypeAction }
func (m *ResetMessage) MessageType() string  { return MessageTypeReset }
func (m *PauseMessage) MessageType() string  { return MessageTypePause }
func (m *PingMessage) MessageType() string   { return MessageTypePing }
func (m *PongMessage) MessageType() string   { return MessageTypePong }
func (m *InfoMessage) MessageType() string   { return MessageTypeInfo }
func (m *CreateMessage) MessageType() string { return MessageTypeCreate }
func (m *FrameMessage) MessageType() string  { return MessageTypeFrame }
func (m *LapMessage) MessageType() string    { return MessageTypeLap }
func (m *ErrorMessage) MessageType() string  { return MessageTypeError }
