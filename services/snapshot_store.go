package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 2 * time.Hour

// SnapshotStore mirrors the public room snapshot into Redis so that ops
// tooling and sibling services can inspect live rooms without touching the
// engine. The in-memory room stays authoritative; a nil store (Redis not
// configured) turns every call into a no-op.
type SnapshotStore struct {
	rdb *redis.Client
}

func NewSnapshotStore(rdb *redis.Client) *SnapshotStore {
	if rdb == nil {
		return nil
	}
	return &SnapshotStore{rdb: rdb}
}

func snapshotKey(code string) string {
	return "room:" + code
}

// Put writes the public snapshot under room:<CODE> with a sliding TTL.
// Failures are logged and swallowed; the mirror is best effort.
func (s *SnapshotStore) Put(code string, snap RoomSnapshot) {
	if s == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[STORE] Failed to marshal snapshot for room %s: %v", code, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Set(ctx, snapshotKey(code), data, snapshotTTL).Err(); err != nil {
		log.Printf("[STORE] Failed to store snapshot for room %s: %v", code, err)
	}
}

// Delete removes the mirror entry when a room is torn down.
func (s *SnapshotStore) Delete(code string) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, snapshotKey(code)).Err(); err != nil {
		log.Printf("[STORE] Failed to delete snapshot for room %s: %v", code, err)
	}
}
