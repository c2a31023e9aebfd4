package loto

// MaxNumber is the highest callable number on a Lô Tô board.
const MaxNumber = 90

type Status string

const (
	StatusLobby   = Status("lobby")
	StatusPlaying = Status("playing")
	StatusEnded   = Status("ended")
)

// Participant is created once at join time and never mutated. There is no
// leave protocol; a participant that disconnects simply stops receiving.
type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	JoinedAt int64  `json:"joinedAt"` // unix millis
	Color    string `json:"color,omitempty"`
}

// GameState is the single unit of replication. Every state-changing operation
// produces a complete new GameState that receivers adopt wholesale; nothing
// is ever patched in place. Field names match the wire format.
type GameState struct {
	SessionID     string        `json:"sessionId"`
	Numbers       []int         `json:"numbers"`
	CurrentNumber *int          `json:"currentNumber"`
	Participants  []Participant `json:"participants"`
	Status        Status        `json:"status"`
	LastRao       string        `json:"lastRao,omitempty"`
}

func NewState(sessionID string) GameState {
	return GameState{
		SessionID:    sessionID,
		Numbers:      []int{},
		Participants: []Participant{},
		Status:       StatusLobby,
	}
}

// Clone returns a deep copy so callers can hand out snapshots without
// aliasing the owner's slices.
func (s GameState) Clone() GameState {
	c := s
	c.Numbers = append([]int(nil), s.Numbers...)
	c.Participants = append([]Participant(nil), s.Participants...)
	if s.CurrentNumber != nil {
		n := *s.CurrentNumber
		c.CurrentNumber = &n
	}
	return c
}

// Remaining returns the undrawn pool {1..90} \ Numbers, in ascending order.
func (s GameState) Remaining() []int {
	drawn := make(map[int]bool, len(s.Numbers))
	for _, n := range s.Numbers {
		drawn[n] = true
	}
	pool := make([]int, 0, MaxNumber-len(s.Numbers))
	for n := 1; n <= MaxNumber; n++ {
		if !drawn[n] {
			pool = append(pool, n)
		}
	}
	return pool
}

func (s GameState) Exhausted() bool {
	return len(s.Numbers) >= MaxNumber
}

// Draw returns a new state with n appended, n current, the verse attached and
// status forced to playing. The receiver is not modified.
func Draw(s GameState, n int, verse string) GameState {
	next := s.Clone()
	next.Numbers = append(next.Numbers, n)
	next.CurrentNumber = &n
	next.LastRao = verse
	next.Status = StatusPlaying
	return next
}

// Reset returns a new lobby state keeping the session and its roster while
// clearing everything the draws produced.
func Reset(s GameState) GameState {
	next := s.Clone()
	next.Numbers = []int{}
	next.CurrentNumber = nil
	next.LastRao = ""
	next.Status = StatusLobby
	return next
}

// Fold merges a presence announcement into the roster: any existing entry
// with the same id is dropped and the new one appended, so the last
// announcement for a given id wins. Folding the same announcement twice
// yields the same roster.
func Fold(s GameState, p Participant) GameState {
	next := s.Clone()
	kept := next.Participants[:0]
	for _, existing := range next.Participants {
		if existing.ID != p.ID {
			kept = append(kept, existing)
		}
	}
	next.Participants = append(kept, p)
	return next
}
