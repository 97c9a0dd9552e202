package services

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Room codes skip I and O to avoid confusion when read aloud.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 4
)

// RoomRegistry owns the set of live rooms. It only guards the code-to-room
// map; each room serializes its own state behind its own mutex, so actions
// on different rooms never contend here beyond the lookup.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	rng   *rand.Rand

	timer       *TimerService
	bank        WordBank
	broadcaster Broadcaster
	store       *SnapshotStore
}

func NewRoomRegistry(timer *TimerService, bank WordBank, store *SnapshotStore) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*Room),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		timer: timer,
		bank:  bank,
		store: store,
	}
}

// SetBroadcaster wires the outbound event sink. The hub needs the registry
// to route inbound messages and the registry needs the hub to push state, so
// the link is completed after both exist.
func (rr *RoomRegistry) SetBroadcaster(b Broadcaster) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.broadcaster = b
	for _, room := range rr.rooms {
		room.mu.Lock()
		room.broadcaster = b
		room.mu.Unlock()
	}
}

func (rr *RoomRegistry) generateCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rr.rng.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := rr.rooms[code]; !taken {
			return code
		}
	}
}

// CreateRoom opens a new lobby with the creator as host and returns the room
// and the host's player record. Settings are fixed for the life of the room,
// so category names are checked here rather than at game start.
func (rr *RoomRegistry) CreateRoom(hostName string, settings Settings) (*Room, *Player, error) {
	if err := rr.validateCategories(settings.Categories); err != nil {
		return nil, nil, err
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	code := rr.generateCodeLocked()
	room := newRoom(code, settings, rr.timer, rr.bank, rr.broadcaster, rr.store)

	room.mu.Lock()
	host := room.addPlayerLocked(hostName)
	room.HostID = host.ID
	room.mu.Unlock()

	rr.rooms[code] = room
	log.Printf("[REGISTRY] Room %s created by %s", code, hostName)
	return room, host, nil
}

func (rr *RoomRegistry) validateCategories(requested []string) error {
	if rr.bank == nil || len(requested) == 0 {
		return nil
	}
	known := rr.bank.Categories()
	if known == nil {
		return nil
	}
	valid := make(map[string]bool, len(known))
	for _, name := range known {
		valid[name] = true
	}
	for _, name := range requested {
		if !valid[name] {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, name)
		}
	}
	return nil
}

// JoinRoom adds a player to an existing lobby. Codes are case-insensitive.
func (rr *RoomRegistry) JoinRoom(code, name string) (*Room, *Player, error) {
	room, err := rr.Get(code)
	if err != nil {
		return nil, nil, err
	}
	p, err := room.Join(name)
	if err != nil {
		return nil, nil, err
	}
	return room, p, nil
}

// Get looks up a live room by code.
func (rr *RoomRegistry) Get(code string) (*Room, error) {
	rr.mu.RLock()
	room, ok := rr.rooms[strings.ToUpper(code)]
	rr.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RemovePlayer detaches a player from a room and deletes the room once its
// last player is gone. Unknown rooms and players are silently ignored so
// that disconnect cleanup is always safe to call.
func (rr *RoomRegistry) RemovePlayer(code, playerID string) {
	room, err := rr.Get(code)
	if err != nil {
		return
	}
	_, empty := room.RemovePlayer(playerID)
	if empty {
		rr.mu.Lock()
		delete(rr.rooms, room.Code)
		rr.mu.Unlock()
		log.Printf("[REGISTRY] Room %s deleted (empty)", room.Code)
	}
}

// Count returns the number of live rooms.
func (rr *RoomRegistry) Count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}
