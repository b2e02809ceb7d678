// Package transport adapts a coder/websocket connection to the
// signaling.Conn interface, and accepts new connections on behalf of
// the signaling core. This is the external collaborator spec.md §1
// calls out: the socket upgrade handshake, read/write deadlines, and
// origin policy live here, never in the signaling state machine.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/Woolfer0097/signalmatch/internal/protocol"
	"github.com/Woolfer0097/signalmatch/internal/signaling"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// wsConn adapts *websocket.Conn to signaling.Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}

// Server accepts WebSocket signaling connections and hands them to the
// signaling registry, mirroring the identity-allocator and waiting-
// registry handoff from spec.md §2/§4.4.
type Server struct {
	log      *zap.Logger
	registry *signaling.Registry
	dir      *signaling.RoomDirectory
}

func NewServer(log *zap.Logger, registry *signaling.Registry, dir *signaling.RoomDirectory) *Server {
	return &Server{log: log, registry: registry, dir: dir}
}

// HandleSignaling upgrades the HTTP request to a WebSocket, resolves the
// optional room path segment, mints the peer's identity, and starts its
// session. The path segment (e.g. /webrtc/alpha) supplies the requested
// room; an empty path means "new room, auto-generate id" (spec.md §6).
func (s *Server) HandleSignaling(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.log.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	origin := r.RemoteAddr
	room := requestedRoomFromPath(r.URL.Path)
	s.registry.AddWaitingClient(origin, room)

	peerId := protocol.NewPeerId()
	if err := s.registry.AssignIdToWaitingClient(origin, peerId); err != nil {
		s.log.Error("failed to assign id to waiting client", zap.String("origin", origin), zap.Error(err))
		conn.Close(websocket.StatusInternalError, "registration failed")
		return
	}

	adapted := &wsConn{conn: conn}
	if err := adapted.WriteMessage(mustMarshal(protocol.PeerSignalEvent(protocol.IdAssignedEvent(peerId)))); err != nil {
		s.log.Error("failed to send id assignment", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "")
		return
	}

	session := signaling.NewSession(s.log, s.registry, peerId, adapted, s.dir)
	go session.Run()
}

func requestedRoomFromPath(path string) signaling.RequestedRoom {
	segment := strings.Trim(strings.TrimPrefix(path, "/webrtc"), "/")
	return signaling.RoomRequest(segment)
}

func mustMarshal(v protocol.SignalEvent) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// IdAssigned always marshals; this would only fail on an OOM-class
		// condition, which the caller cannot meaningfully recover from.
		panic(err)
	}
	return data
}
