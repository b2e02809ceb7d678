package signaling

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Woolfer0097/signalmatch/internal/protocol"
)

// Conn is the minimal transport surface a Session needs: a framed,
// bidirectional text channel. The socket upgrade handshake, TLS
// termination and CORS are external collaborators (spec §1) that
// produce a value satisfying this interface; see internal/transport for
// the coder/websocket adapter.
type Conn interface {
	// ReadMessage blocks for the next inbound frame. Any error (close,
	// reset, protocol violation at the transport level) ends the session's
	// inbound loop.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one outbound frame. Once the session runs, it
	// calls this only from its single write loop.
	WriteMessage(data []byte) error
	// Close tears down the underlying connection.
	Close() error
}

const outboxCapacity = 32

// Session is the per-connection task: it owns one peer's place in the
// room state machine from placement through teardown.
type Session struct {
	log      *zap.Logger
	registry *Registry
	peerId   protocol.PeerId
	conn     Conn
	outbox   chan []byte

	// sendMu guards outbox against the send-after-close race: TrySend can
	// still be resolving against the active registry for this peer at the
	// exact moment its own session finishes and closes the outbox, and a
	// send on a closed channel panics unconditionally (unlike the Rust
	// UnboundedSender this is ported from, where send on a dropped
	// receiver just returns an error). closed is checked and outbox is
	// closed under the same lock so send and closeOutbox can never
	// interleave.
	sendMu sync.Mutex
	closed bool

	// dir mirrors room occupancy into Redis for the introspection route.
	// It is optional: a nil dir disables mirroring entirely, and every
	// call into it is best-effort (spec non-goal: no durability).
	dir *RoomDirectory
}

// NewSession constructs a session for a peer that has already been
// assigned an id and has a pending queue entry in registry. dir may be
// nil to disable the Redis-backed introspection mirror.
func NewSession(log *zap.Logger, registry *Registry, peerId protocol.PeerId, conn Conn, dir *RoomDirectory) *Session {
	return &Session{
		log:      log.With(zap.String("peer_id", peerId.String())),
		registry: registry,
		peerId:   peerId,
		conn:     conn,
		outbox:   make(chan []byte, outboxCapacity),
		dir:      dir,
	}
}

// send is the non-blocking enqueue endpoint handed to the active
// registry; it is the only way a SignalEvent reaches this session's
// write loop.
func (s *Session) send(frame protocol.SignalEvent) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return ErrTransportEnqueueFailed
	}
	select {
	case s.outbox <- data:
		return nil
	default:
		return ErrTransportEnqueueFailed
	}
}

// Run drives the session to completion: placement, the inbound relay
// loop, and the disconnect policy. It blocks until the connection ends.
func (s *Session) Run() {
	go s.writeLoop()

	requested, err := s.registry.RemoveWaitingPeer(s.peerId)
	if err != nil {
		s.log.Error("session cannot start, no queue entry", zap.Error(err))
		s.finish()
		return
	}

	roomId := s.registry.AddPeer(s.peerId, requested, s.send)

	if s.registry.IsPeerHost(s.peerId, roomId) {
		if err := s.registry.TrySend(s.peerId, protocol.RoomOpenedEvent(string(roomId))); err != nil {
			s.log.Warn("failed to notify new host of room", zap.Error(err))
		}
		if err := s.registry.TrySend(s.peerId, protocol.HostStatusEvent(true)); err != nil {
			s.log.Warn("failed to notify new host of status", zap.Error(err))
		}
		if s.dir != nil {
			s.dir.RecordRoomOpened(context.Background(), roomId, s.peerId)
		}
	} else {
		if hostId, ok := s.registry.GetRoomHostPeer(roomId); ok {
			if err := s.registry.TrySend(hostId, protocol.PeerSignalEvent(protocol.NewPeerEvent(s.peerId))); err != nil {
				s.log.Warn("failed to notify host of new peer", zap.String("host_id", hostId.String()), zap.Error(err))
			}
		} else {
			s.log.Error("room has no host", zap.String("room_id", string(roomId)))
		}
		if err := s.registry.TrySend(s.peerId, protocol.HostStatusEvent(false)); err != nil {
			s.log.Warn("failed to notify guest of status", zap.Error(err))
		}
	}
	if s.dir != nil {
		s.dir.RecordPeerJoined(context.Background(), roomId, s.peerId)
	}

	s.readLoop()
	s.runDisconnectPolicy()
}

// writeLoop drains the outbox to the transport. It is the only goroutine
// that writes to conn, and it exits once the outbox is closed and
// drained.
func (s *Session) writeLoop() {
	for data := range s.outbox {
		if err := s.conn.WriteMessage(data); err != nil {
			s.log.Error("failed to write to peer", zap.Error(err))
			return
		}
	}
}

// readLoop consumes inbound frames until the transport closes or errors.
func (s *Session) readLoop() {
	for {
		message, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Info("connection closed", zap.Error(err))
			return
		}

		var request protocol.PeerRequest
		if err := json.Unmarshal(message, &request); err != nil {
			s.log.Warn("malformed request, dropping", zap.Error(err))
			continue
		}

		if request.KeepAlive {
			continue
		}
		if request.Signal != nil {
			s.relaySignal(request.Signal)
		}
	}
}

func (s *Session) relaySignal(req *protocol.SignalRequest) {
	event := protocol.PeerSignalEvent(protocol.SignalEventOf(s.peerId, req.Data))
	if err := s.registry.TrySend(req.Receiver, event); err != nil {
		s.log.Info("dropping signal, recipient unavailable",
			zap.String("receiver", req.Receiver.String()),
			zap.Error(err))
	}
}

// runDisconnectPolicy removes this peer from the active registry and
// propagates its departure: a host's departure broadcasts PeerLeft then
// RoomClosed to every surviving member and tears down the room; a
// guest's departure notifies only the host.
func (s *Session) runDisconnectPolicy() {
	peer, ok := s.registry.RemovePeer(s.peerId)
	if !ok {
		s.log.Error("disconnect: peer already absent from active registry")
		s.finish()
		return
	}
	if peer.RoomId == nil {
		s.log.Debug("disconnect: peer had no room")
		s.finish()
		return
	}
	roomId := *peer.RoomId

	if s.registry.IsPeerHost(s.peerId, roomId) {
		others := s.registry.GetRoomPeers(roomId)
		for _, otherId := range others {
			leftEvent := protocol.PeerSignalEvent(protocol.PeerLeftEvent(s.peerId))
			if err := s.registry.TrySend(otherId, leftEvent); err != nil {
				s.log.Warn("failed to notify peer of host departure", zap.String("peer_id", otherId.String()), zap.Error(err))
			}
			if err := s.registry.TrySend(otherId, protocol.RoomClosedEvent()); err != nil {
				s.log.Warn("failed to notify peer of room close", zap.String("peer_id", otherId.String()), zap.Error(err))
			}
		}
		s.registry.RemoveRoom(roomId)
		if s.dir != nil {
			s.dir.RecordRoomClosed(context.Background(), roomId)
		}
	} else {
		hostId, ok := s.registry.GetRoomHostPeer(roomId)
		if !ok {
			s.log.Error("disconnect: room has no host", zap.String("room_id", string(roomId)))
		} else {
			leftEvent := protocol.PeerSignalEvent(protocol.PeerLeftEvent(s.peerId))
			if err := s.registry.TrySend(hostId, leftEvent); err != nil {
				s.log.Warn("failed to notify host of guest departure", zap.Error(err))
			}
		}
		if s.dir != nil {
			s.dir.RecordPeerLeft(context.Background(), roomId, s.peerId)
		}
	}
	s.finish()
}

func (s *Session) finish() {
	s.closeOutbox()
	if err := s.conn.Close(); err != nil {
		s.log.Debug("error closing connection", zap.Error(err))
	}
}

func (s *Session) closeOutbox() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbox)
}
