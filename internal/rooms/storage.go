package rooms

import (
	"fmt"
	"sync"
	"time"
)

const staleTTL = 12 * time.Hour

type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewStore() *Store {
	s := &Store{
		rooms: make(map[string]*Room),
	}
	go s.sweepStale()
	return s
}

// Create registers a room under a freshly generated code with hostID as the
// claiming host.
func (s *Store) Create(hostID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Try up to 10 times to generate a unique code
	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}

		room := &Room{
			Code:      code,
			HostID:    hostID,
			CreatedAt: time.Now(),
		}
		s.rooms[code] = room
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room code after 10 attempts")
}

// GetOrCreate resolves a user-typed code, registering the room on first use.
// Room ids are opaque; there is no notion of a room that "doesn't exist",
// matching the join-anything behavior of the channel transport. When asHost
// is set and no host has claimed the room yet, participantID becomes its
// host. Host status itself is a local, unchecked claim; the registry only
// remembers the first one.
func (s *Store) GetOrCreate(code, participantID string, asHost bool) *Room {
	code = Normalize(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[code]
	if room == nil {
		room = &Room{
			Code:      code,
			CreatedAt: time.Now(),
		}
		s.rooms[code] = room
	}
	if asHost && room.HostID == "" {
		room.HostID = participantID
	}
	return room
}

func (s *Store) Get(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[Normalize(code)]
}

func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, Normalize(code))
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

func (s *Store) sweepStale() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for code, room := range s.rooms {
			if now.Sub(room.CreatedAt) > staleTTL {
				delete(s.rooms, code)
			}
		}
		s.mu.Unlock()
	}
}
