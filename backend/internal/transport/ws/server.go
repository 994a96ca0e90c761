package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"x-drive/backend/internal/game"
	"x-drive/backend/internal/input"
	"x-drive/backend/internal/telemetry"
	"x-drive/backend/internal/world"
)

const DefaultPingInterval = 2 * time.Second

// Simulation is the part of the session the transport drives.
type Simulation interface {
	LatestFrame() game.Frame
	Reset() game.Frame
	Telemetry() *telemetry.Store
	Scene() *world.Manager
	Checkpoints() *world.Checkpoints
}

// Controls receives driver input.
type Controls interface {
	Press(code string) bool
	Release(code string) bool
	Set(action input.Action, pressed bool)
	ReleaseAll()
}

// Pauser suspends the game loop.
type Pauser interface {
	Pause(pause bool)
	IsPaused() bool
}

// MessageHandler handles one decoded client message.
type MessageHandler func(conn *SafeWriter, message Message) error

// Server is the websocket endpoint of the browser client.
type Server struct {
	upgrader           websocket.Upgrader
	sim                Simulation
	controls           Controls
	pauser             Pauser
	serializer         *SceneSerializer
	handlers           map[string]MessageHandler
	connectionHandlers []func(conn *SafeWriter)
	pingInterval       time.Duration
	logger             zerolog.Logger

	clientsMu sync.RWMutex
	clients   map[*SafeWriter]struct{}
}

// NewServer wires the transport to a simulation. pauser may be nil.
func NewServer(sim Simulation, controls Controls, pauser Pauser, logger zerolog.Logger) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sim:          sim,
		controls:     controls,
		pauser:       pauser,
		serializer:   NewSceneSerializer(sim.Scene()),
		handlers:     make(map[string]MessageHandler),
		pingInterval: DefaultPingInterval,
		logger:       logger.With().Str("component", "WSServer").Logger(),
		clients:      make(map[*SafeWriter]struct{}),
	}

	s.RegisterHandler(MessageTypeKey, s.handleKey)
	s.RegisterHandler(MessageTypeAction, s.handleAction)
	s.RegisterHandler(MessageTypeReset, s.handleReset)
	s.RegisterHandler(MessageTypePause, s.handlePause)
	s.RegisterHandler(MessageTypePing, s.handlePing)
	s.RegisterHandler(MessageTypePong, s.handlePong)

	return s
}

// RegisterHandler sets the handler of a message type.
func (s *Server) RegisterHandler(messageType string, handler MessageHandler) {
	s.handlers[messageType] = handler
}

// OnConnection registers a callback run for every new client.
func (s *Server) OnConnection(handler func(conn *SafeWriter)) {
	s.connectionHandlers = append(s.connectionHandlers, handler)
}

// SetPingInterval changes the keepalive period. Zero disables it.
func (s *Server) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// HandleWS serves one websocket client.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	safeConn := NewSafeWriter(conn)
	done := make(chan struct{})
	defer func() {
		close(done)
		s.removeClient(safeConn)
	}()

	log := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Info().Msg("client connected")

	if err := s.greet(safeConn); err != nil {
		log.Warn().Err(err).Msg("greeting failed")
		return
	}
	s.addClient(safeConn)

	if s.pingInterval > 0 {
		go s.startPing(safeConn, done)
	}
	for _, handler := range s.connectionHandlers {
		handler(safeConn)
	}

	for {
		_, data, err := safeConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			break
		}
		s.dispatch(safeConn, data, log)
	}

	log.Info().Msg("client disconnected")
}

func (s *Server) greet(conn *SafeWriter) error {
	paused := s.pauser != nil && s.pauser.IsPaused()
	info := NewInfoMessage("connected to x-drive", s.sim.Checkpoints().Len(), paused)
	if err := conn.WriteJSON(info); err != nil {
		return errors.Wrap(err, "sending info")
	}
	if err := s.serializer.SendCreateForAllObjects(conn); err != nil {
		return errors.Wrap(err, "sending scene")
	}
	return errors.Wrap(conn.WriteJSON(NewFrameMessage(s.sim.LatestFrame())), "sending frame")
}

func (s *Server) dispatch(conn *SafeWriter, data []byte, log zerolog.Logger) {
	message, err := ParseMessage(data)
	if err != nil {
		log.Debug().Err(err).Msg("rejecting message")
		s.reply(conn, NewErrorMessage(err), log)
		return
	}

	handler, ok := s.handlers[message.MessageType()]
	if !ok {
		log.Debug().Str("type", message.MessageType()).Msg("no handler registered")
		return
	}
	if err := handler(conn, message); err != nil {
		log.Warn().Err(err).Str("type", message.MessageType()).Msg("handler failed")
		s.reply(conn, NewErrorMessage(err), log)
	}
}

func (s *Server) reply(conn *SafeWriter, msg Message, log zerolog.Logger) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("reply failed")
	}
}

func (s *Server) addClient(conn *SafeWriter) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[conn] = struct{}{}
}

// removeClient closes conn. Held keys are released when nobody is left
// to release them.
func (s *Server) removeClient(conn *SafeWriter) {
	s.clientsMu.Lock()
	_, known := s.clients[conn]
	delete(s.clients, conn)
	remaining := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close()
	if known && remaining == 0 {
		s.controls.ReleaseAll()
		s.logger.Debug().Msg("last client left, controls released")
	}
}

// BroadcastFrame sends f to every client. Clients that cannot be written
// to are dropped.
func (s *Server) BroadcastFrame(f game.Frame) error {
	return s.broadcast(NewFrameMessage(f))
}

// BroadcastLap announces the lap completed in f.
func (s *Server) BroadcastLap(f game.Frame) error {
	s.logger.Info().
		Int("lap", f.Telemetry.Lap).
		Float64("lap_time", f.Event.LapTime).
		Bool("new_best", f.Event.NewBest).
		Msg("broadcasting lap")
	return s.broadcast(NewLapMessage(f))
}

func (s *Server) broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "encoding %s message", msg.MessageType())
	}

	s.clientsMu.RLock()
	clients := make([]*SafeWriter, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Warn().Err(err).Str("type", msg.MessageType()).Msg("dropping client")
			s.removeClient(c)
		}
	}
	return nil
}

// Routes returns the HTTP surface: /ws, /telemetry, /healthz and, when
// staticDir is set, the client files.
func (s *Server) Routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.HandleFunc("/healthz", s.handleHealth)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	data, err := s.sim.Telemetry().JSON()
	if err != nil {
		s.logger.Error().Err(err).Msg("encoding telemetry")
		http.Error(w, "telemetry unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
		Paused  bool   `json:"paused"`
		Tick    uint64 `json:"tick"`
	}{
		Status:  "ok",
		Clients: s.ClientCount(),
		Paused:  s.pauser != nil && s.pauser.IsPaused(),
		Tick:    s.sim.LatestFrame().Tick,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}
