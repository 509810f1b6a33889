package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	joinTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	pingInterval = 20 * time.Second
	// Read deadline is pushed forward on every ping cycle; a member that
	// answers no pings for two intervals is considered gone.
	readTimeout = 2 * pingInterval

	maxFrameBytes = 1 << 20
	outboundDepth = 128
)

type outboundFrame struct {
	messageType int
	data        []byte
}

type member struct {
	id   string
	name string
	room string
	conn *websocket.Conn
	out  chan outboundFrame

	closeOnce sync.Once
}

func (m *member) close() {
	m.closeOnce.Do(func() { close(m.out) })
}

// Server fans frames out to room members. Zero value is not usable;
// construct with NewServer and mount it on an http mux.
type Server struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*member]struct{}
}

func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[*member]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	_ = conn.SetReadDeadline(time.Now().Add(joinTimeout))
	messageType, first, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if messageType != websocket.TextMessage {
		s.reject(conn, "bad_request", "first frame must be join")
		return
	}
	j, err := decodeJoin(first)
	if err != nil {
		s.reject(conn, "bad_request", err.Error())
		return
	}

	m := &member{
		id:   j.ParticipantID,
		name: j.Name,
		room: j.Room,
		conn: conn,
		out:  make(chan outboundFrame, outboundDepth),
	}
	members := s.register(m)
	joinsTotal.Inc()
	s.log.Info("member joined", "room", m.room, "participant", m.id, "members", members)

	ack, _ := json.Marshal(joined{Type: "joined", Room: m.room, Members: members})
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
		s.unregister(m)
		return
	}

	go s.writePump(m)
	s.readLoop(m)

	s.unregister(m)
	m.close()
	s.log.Info("member left", "room", m.room, "participant", m.id)
}

func (s *Server) readLoop(m *member) {
	for {
		_ = m.conn.SetReadDeadline(time.Now().Add(readTimeout))
		messageType, data, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		switch messageType {
		case websocket.BinaryMessage, websocket.TextMessage:
			s.broadcast(m, messageType, data)
		}
	}
}

// broadcast forwards one frame to every other member of the sender's
// room. A member whose outbound queue is full loses the frame; audio is
// continuous and a stalled reader must not stall the room.
func (s *Server) broadcast(from *member, messageType int, data []byte) {
	s.mu.Lock()
	peers := make([]*member, 0, len(s.rooms[from.room]))
	for p := range s.rooms[from.room] {
		if p != from {
			peers = append(peers, p)
		}
	}
	s.mu.Unlock()

	for _, p := range peers {
		select {
		case p.out <- outboundFrame{messageType: messageType, data: data}:
			framesRelayed.Inc()
		default:
			framesLost.Inc()
		}
	}
}

func (s *Server) writePump(m *member) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-m.out:
			if !ok {
				_ = m.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			_ = m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := m.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := m.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}

func (s *Server) register(m *member) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[m.room] == nil {
		s.rooms[m.room] = make(map[*member]struct{})
	}
	s.rooms[m.room][m] = struct{}{}
	return len(s.rooms[m.room])
}

func (s *Server) unregister(m *member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peers, ok := s.rooms[m.room]; ok {
		delete(peers, m)
		if len(peers) == 0 {
			delete(s.rooms, m.room)
		}
	}
}

// RoomSize reports the current member count of a room.
func (s *Server) RoomSize(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[room])
}

func (s *Server) reject(conn *websocket.Conn, code, message string) {
	payload, _ := json.Marshal(wsError{Type: "error", Code: code, Message: message})
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(writeTimeout))
}
