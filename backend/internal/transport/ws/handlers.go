package ws

import (
	"time"

	"github.com/pkg/errors"

	"x-drive/backend/internal/input"
)

func (s *Server) handleKey(conn *SafeWriter, message Message) error {
	msg, ok := message.(*KeyMessage)
	if !ok {
		return ErrInvalidMessage
	}

	var mapped bool
	if msg.Pressed {
		mapped = s.controls.Press(msg.Code)
	} else {
		mapped = s.controls.Release(msg.Code)
	}
	if !mapped {
		s.logger.Debug().Str("code", msg.Code).Msg("ignoring unmapped key")
	}
	return nil
}

func (s *Server) handleAction(conn *SafeWriter, message Message) error {
	msg, ok := message.(*ActionMessage)
	if !ok {
		return ErrInvalidMessage
	}

	action, ok := input.ParseAction(msg.Action)
	if !ok {
		return errors.Wrapf(ErrInvalidMessage, "unknown action %q", msg.Action)
	}
	s.controls.Set(action, msg.Pressed)
	return nil
}

func (s *Server) handleReset(conn *SafeWriter, message Message) error {
	if _, ok := message.(*ResetMessage); !ok {
		return ErrInvalidMessage
	}
	return s.BroadcastFrame(s.sim.Reset())
}

func (s *Server) handlePause(conn *SafeWriter, message Message) error {
	msg, ok := message.(*PauseMessage)
	if !ok {
		return ErrInvalidMessage
	}
	if s.pauser == nil {
		return errors.New("pausing is not supported")
	}

	s.pauser.Pause(msg.Paused)
	if msg.Paused {
		s.controls.ReleaseAll()
	}
	// the loop no longer broadcasts while paused
	return s.BroadcastFrame(s.sim.LatestFrame())
}

func (s *Server) handlePing(conn *SafeWriter, message Message) error {
	msg, ok := message.(*PingMessage)
	if !ok {
		return ErrInvalidMessage
	}
	return conn.WriteJSON(NewPongMessage(msg.ClientTime))
}

func (s *Server) handlePong(conn *SafeWriter, message Message) error {
	msg, ok := message.(*PongMessage)
	if !ok {
		return ErrInvalidMessage
	}
	if msg.ServerTime > 0 {
		s.logger.Debug().Int64("rtt_ms", GetCurrentServerTime()-msg.ServerTime).Msg("pong")
	}
	return nil
}

// startPing sends keepalive pings until done is closed or a write fails.
func (s *Server) startPing(conn *SafeWriter, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ping := &PingMessage{Type: MessageTypePing, ServerTime: GetCurrentServerTime()}
			if err := conn.WriteJSON(ping); err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}
