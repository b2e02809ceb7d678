// Package signaling implements the session lifecycle and room state
// machine described in the signaling spec: a concurrent registry of
// waiting, queued, and active peers, room membership and host
// assignment, and the per-connection session that drives it.
package signaling

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Woolfer0097/signalmatch/internal/protocol"
)

// RequestedRoom is the room a connecting client asked for, if any. A zero
// value (Present == false) means "new room, auto-generate an id".
type RequestedRoom struct {
	ID      protocol.RoomId
	Present bool
}

func NoRoom() RequestedRoom                { return RequestedRoom{} }
func RoomRequest(id string) RequestedRoom  { return RequestedRoom{ID: protocol.RoomId(id), Present: id != ""} }

// SendFunc is the non-blocking send endpoint owned exclusively by the
// active registry (spec I5): callers never retain it across a registry
// mutation, they always go through Registry.TrySend.
type SendFunc func(frame protocol.SignalEvent) error

// Peer is a live, room-placed connection.
type Peer struct {
	Id            protocol.PeerId
	RequestedRoom RequestedRoom
	RoomId        *protocol.RoomId // nil until placed, cleared when the room is removed
	send          SendFunc
}

// Room is a rendezvous scope with a pinned host.
type Room struct {
	Id    protocol.RoomId
	Peers mapset.Set[protocol.PeerId]
	Host  protocol.PeerId
}

// Registry holds the three disjoint registries of spec.md §4.1/§4.2:
// waiting (origin -> requested room), queue (peer id -> requested room),
// and active (the authoritative clients/rooms maps). Each is guarded
// independently; the active maps share one lock so add_peer/remove_room
// are single critical sections, per spec's recommended discipline.
type Registry struct {
	log *zap.Logger

	waitingMu sync.Mutex
	waiting   map[string]RequestedRoom

	queueMu sync.Mutex
	queue   map[protocol.PeerId]RequestedRoom

	activeMu sync.Mutex
	clients  map[protocol.PeerId]*Peer
	rooms    map[protocol.RoomId]*Room
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:     log,
		waiting: make(map[string]RequestedRoom),
		queue:   make(map[protocol.PeerId]RequestedRoom),
		clients: make(map[protocol.PeerId]*Peer),
		rooms:   make(map[protocol.RoomId]*Room),
	}
}

// AddWaitingClient records a freshly accepted connection's requested room,
// keyed by its network origin, before an identity has been assigned.
func (r *Registry) AddWaitingClient(origin string, room RequestedRoom) {
	r.waitingMu.Lock()
	defer r.waitingMu.Unlock()
	r.waiting[origin] = room
	r.log.Debug("waiting client added", zap.String("origin", origin))
}

// AssignIdToWaitingClient drains the waiting entry for origin and enqueues
// it under the freshly minted peer id.
func (r *Registry) AssignIdToWaitingClient(origin string, peerId protocol.PeerId) error {
	r.waitingMu.Lock()
	room, ok := r.waiting[origin]
	if ok {
		delete(r.waiting, origin)
	}
	r.waitingMu.Unlock()
	if !ok {
		return ErrMissingWaitingEntry
	}

	r.queueMu.Lock()
	r.queue[peerId] = room
	r.queueMu.Unlock()
	r.log.Debug("peer id assigned", zap.String("peer_id", peerId.String()), zap.String("origin", origin))
	return nil
}

// RemoveWaitingPeer drains the queue entry for peerId, returning its
// requested room. Called once, at session start.
func (r *Registry) RemoveWaitingPeer(peerId protocol.PeerId) (RequestedRoom, error) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	room, ok := r.queue[peerId]
	if !ok {
		return RequestedRoom{}, ErrMissingQueueEntry
	}
	delete(r.queue, peerId)
	return room, nil
}

// AddPeer resolves the peer's target room (its request, or a fresh
// auto-generated id), creates the room if absent designating the peer as
// host, inserts the peer into the room, and stores the peer. Single
// critical section over the active maps.
func (r *Registry) AddPeer(peerId protocol.PeerId, requested RequestedRoom, send SendFunc) protocol.RoomId {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	roomId := requested.ID
	if !requested.Present {
		roomId = protocol.RoomId(uuid.NewString())
	}

	room, exists := r.rooms[roomId]
	if !exists {
		room = &Room{
			Id:    roomId,
			Peers: mapset.NewSet[protocol.PeerId](),
			Host:  peerId,
		}
		r.rooms[roomId] = room
		r.log.Debug("room created", zap.String("room_id", string(roomId)), zap.String("host", peerId.String()))
	}
	room.Peers.Add(peerId)

	rid := roomId
	r.clients[peerId] = &Peer{
		Id:            peerId,
		RequestedRoom: requested,
		RoomId:        &rid,
		send:          send,
	}
	r.log.Debug("peer added", zap.String("peer_id", peerId.String()), zap.String("room_id", string(roomId)))

	return roomId
}

// GetPeer returns a shallow copy of the peer record, or false if absent.
func (r *Registry) GetPeer(id protocol.PeerId) (Peer, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	p, ok := r.clients[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// GetRoomPeers returns a snapshot of a room's current member ids.
func (r *Registry) GetRoomPeers(id protocol.RoomId) []protocol.PeerId {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil
	}
	return room.Peers.ToSlice()
}

// GetRoomHostPeer returns the host of a room, if it exists.
func (r *Registry) GetRoomHostPeer(id protocol.RoomId) (protocol.PeerId, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return uuid.Nil, false
	}
	return room.Host, true
}

// IsPeerHost is a cheap predicate: whether peerId is the pinned host of
// roomId, false if the room is absent. It does not check the clients map,
// so a host already taken out by RemovePeer still reports true while its
// room exists.
func (r *Registry) IsPeerHost(peerId protocol.PeerId, roomId protocol.RoomId) bool {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	room, ok := r.rooms[roomId]
	if !ok {
		return false
	}
	return room.Host == peerId
}

// RemovePeer removes the peer from the clients map and, if it had a room,
// from that room's member set. It does not delete the room even if the
// peer was the host — that is the session's responsibility.
func (r *Registry) RemovePeer(id protocol.PeerId) (Peer, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	p, ok := r.clients[id]
	if !ok {
		return Peer{}, false
	}
	delete(r.clients, id)

	if p.RoomId != nil {
		if room, ok := r.rooms[*p.RoomId]; ok {
			room.Peers.Remove(id)
		}
	}
	r.log.Debug("peer removed", zap.String("peer_id", id.String()))
	return *p, true
}

// RemoveRoom removes the room and clears the room attribute of any
// still-registered peers that pointed at it.
func (r *Registry) RemoveRoom(id protocol.RoomId) (Room, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		r.log.Debug("room not removed, doesn't exist", zap.String("room_id", string(id)))
		return Room{}, false
	}
	delete(r.rooms, id)

	for _, peerId := range room.Peers.ToSlice() {
		if p, ok := r.clients[peerId]; ok {
			p.RoomId = nil
		}
	}
	r.log.Debug("room removed", zap.String("room_id", string(id)))
	return *room, true
}

// TrySend looks up the peer's send endpoint and enqueues the frame
// non-blockingly. It never performs network I/O itself.
func (r *Registry) TrySend(id protocol.PeerId, frame protocol.SignalEvent) error {
	r.activeMu.Lock()
	p, ok := r.clients[id]
	r.activeMu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	if err := p.send(frame); err != nil {
		return err
	}
	return nil
}
