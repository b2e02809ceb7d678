package signaling

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Woolfer0097/signalmatch/internal/protocol"
)

const roomDirectoryTTL = 24 * time.Hour

// RoomDirectory is a best-effort, non-authoritative mirror of room
// occupancy in Redis, used only by the introspection HTTP route. It is
// never consulted by the signaling core: the in-memory Registry remains
// the sole source of truth, and RoomDirectory failures never affect a
// session (spec non-goal: no durability, no state survives a restart).
type RoomDirectory struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRoomDirectory(rdb *redis.Client, log *zap.Logger) *RoomDirectory {
	return &RoomDirectory{rdb: rdb, log: log}
}

// RecordRoomOpened mirrors a newly opened room's host into Redis.
func (d *RoomDirectory) RecordRoomOpened(ctx context.Context, roomId protocol.RoomId, host protocol.PeerId) {
	if err := d.rdb.HSet(ctx, roomKey(roomId), "host", host.String(), "created_at", time.Now().Unix()).Err(); err != nil {
		d.log.Warn("room directory: failed to record room opened", zap.String("room_id", string(roomId)), zap.Error(err))
		return
	}
	d.rdb.Expire(ctx, roomKey(roomId), roomDirectoryTTL)
}

// RecordPeerJoined mirrors a peer's membership into Redis.
func (d *RoomDirectory) RecordPeerJoined(ctx context.Context, roomId protocol.RoomId, peerId protocol.PeerId) {
	if err := d.rdb.SAdd(ctx, roomMembersKey(roomId), peerId.String()).Err(); err != nil {
		d.log.Warn("room directory: failed to record peer join", zap.Error(err))
		return
	}
	d.rdb.Expire(ctx, roomMembersKey(roomId), roomDirectoryTTL)
}

// RecordPeerLeft removes a peer from the mirrored membership set.
func (d *RoomDirectory) RecordPeerLeft(ctx context.Context, roomId protocol.RoomId, peerId protocol.PeerId) {
	if err := d.rdb.SRem(ctx, roomMembersKey(roomId), peerId.String()).Err(); err != nil {
		d.log.Warn("room directory: failed to record peer leave", zap.Error(err))
	}
}

// RecordRoomClosed deletes the mirrored room entirely.
func (d *RoomDirectory) RecordRoomClosed(ctx context.Context, roomId protocol.RoomId) {
	if err := d.rdb.Del(ctx, roomKey(roomId), roomMembersKey(roomId)).Err(); err != nil {
		d.log.Warn("room directory: failed to record room closed", zap.Error(err))
	}
}

// Snapshot is the introspection read model for GET /api/rooms/{id}.
type Snapshot struct {
	RoomId  string   `json:"room_id"`
	Host    string   `json:"host"`
	Members []string `json:"members"`
	Exists  bool     `json:"exists"`
}

// Describe reads back a best-effort snapshot of a room. It is a cache
// read, not a registry lookup: it can be stale. A room with no mirrored
// entry yields Exists == false; a Redis failure is returned as an error.
func (d *RoomDirectory) Describe(ctx context.Context, roomId protocol.RoomId) (Snapshot, error) {
	host, err := d.rdb.HGet(ctx, roomKey(roomId), "host").Result()
	if err == redis.Nil {
		return Snapshot{RoomId: string(roomId), Exists: false}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	members, err := d.rdb.SMembers(ctx, roomMembersKey(roomId)).Result()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{RoomId: string(roomId), Host: host, Members: members, Exists: true}, nil
}

func roomKey(id protocol.RoomId) string        { return "signalmatch:room:" + string(id) }
func roomMembersKey(id protocol.RoomId) string { return "signalmatch:room:" + string(id) + ":members" }
