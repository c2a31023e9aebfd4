// Package session orchestrates one participant's view of a room: it owns the
// local GameState copy, reconciles inbound broadcasts, folds presence
// announcements and performs the host's draws. All mutation funnels through
// DrawNext, Reset and the two event handlers; nothing else touches the state.
package session

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"

	"lotolive/internal/loto"
	"lotolive/internal/pubsub"
)

// Event names on the room channel.
const (
	EventStateUpdate       = "stateUpdate"
	EventParticipantJoined = "participantJoined"
)

// Verser produces the caller verse for a drawn number. Implementations must
// always return some string (fail-open).
type Verser interface {
	Verse(ctx context.Context, number int) string
}

// Controller owns exactly one GameState. Each connected participant gets its
// own Controller; peers only influence each other through the room channel.
type Controller struct {
	verses Verser

	mu      sync.Mutex
	state   loto.GameState
	self    loto.Participant
	ch      *pubsub.Channel
	voiceOn bool

	// onChange receives a snapshot after every state replacement.
	onChange func(loto.GameState)
	// announce receives the new current number when it changes and voice is
	// on. Both callbacks run outside the controller lock.
	announce func(number int)
}

func NewController(verses Verser) *Controller {
	return &Controller{
		verses:  verses,
		voiceOn: true,
	}
}

// SetOnChange registers the snapshot consumer (the rendering surface).
func (c *Controller) SetOnChange(f func(loto.GameState)) {
	c.mu.Lock()
	c.onChange = f
	c.mu.Unlock()
}

// SetAnnounce registers the voice announcement hook.
func (c *Controller) SetAnnounce(f func(number int)) {
	c.mu.Lock()
	c.announce = f
	c.mu.Unlock()
}

// Join subscribes to the room, registers the reconciliation handlers and
// announces this participant. The local echo of that announcement folds the
// participant into its own roster.
func (c *Controller) Join(broker *pubsub.Broker, p loto.Participant, roomID string) {
	c.mu.Lock()
	c.self = p
	c.state = loto.NewState(roomID)
	c.ch = broker.Subscribe(roomID)
	ch := c.ch
	c.mu.Unlock()

	ch.On(EventStateUpdate, c.handleStateUpdate)
	ch.On(EventParticipantJoined, c.handleParticipantJoined)
	ch.Emit(EventParticipantJoined, p)
}

// Leave closes the room channel. Peers are not told; disconnection is not
// detected by design.
func (c *Controller) Leave() {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// State returns an independent snapshot of the local GameState.
func (c *Controller) State() loto.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Controller) Self() loto.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

func (c *Controller) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self.IsHost
}

// ToggleVoice flips the local voice announcement flag and returns the new
// value. Voice is a per-participant setting, never replicated.
func (c *Controller) ToggleVoice() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voiceOn = !c.voiceOn
	return c.voiceOn
}

func (c *Controller) VoiceOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceOn
}

// DrawNext selects one undrawn number uniformly at random, fetches its verse
// and broadcasts the extended state. Host-only; non-hosts and an exhausted
// pool are no-ops returning false so the auto-advance loop can disable
// itself. The verse fetch may take unbounded time (subject to the verser's
// own timeout); the broadcast carries whatever it returns.
func (c *Controller) DrawNext(ctx context.Context) bool {
	c.mu.Lock()
	if !c.self.IsHost || c.ch == nil {
		c.mu.Unlock()
		return false
	}
	snapshot := c.state.Clone()
	ch := c.ch
	c.mu.Unlock()

	if snapshot.Status == loto.StatusEnded {
		return false
	}
	pool := snapshot.Remaining()
	if len(pool) == 0 {
		return false
	}
	n := pool[rand.Intn(len(pool))]

	text := c.verses.Verse(ctx, n)

	// Re-read: the verse fetch is a suspension point and a peer broadcast may
	// have landed meanwhile. Last broadcast wins either way.
	cur := c.State()
	for _, drawn := range cur.Numbers {
		if drawn == n {
			return true
		}
	}

	ch.Emit(EventStateUpdate, loto.Draw(cur, n, text))
	return true
}

// Reset broadcasts a fresh lobby state keeping the session and roster.
// Host-only no-op otherwise. Callers running auto-advance must cancel it
// before resetting.
func (c *Controller) Reset() {
	c.mu.Lock()
	if !c.self.IsHost || c.ch == nil {
		c.mu.Unlock()
		return
	}
	snapshot := c.state.Clone()
	ch := c.ch
	c.mu.Unlock()

	ch.Emit(EventStateUpdate, loto.Reset(snapshot))
}

func (c *Controller) handleStateUpdate(data []byte) {
	var next loto.GameState
	if err := json.Unmarshal(data, &next); err != nil {
		log.Printf("[Session] bad stateUpdate payload: %v\n", err)
		return
	}

	c.mu.Lock()
	prev := c.state.CurrentNumber
	c.state = next
	notify := c.onChange
	announce := c.announce
	voice := c.voiceOn
	snapshot := c.state.Clone()
	c.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	if announce != nil && voice && next.CurrentNumber != nil {
		if prev == nil || *prev != *next.CurrentNumber {
			announce(*next.CurrentNumber)
		}
	}
}

func (c *Controller) handleParticipantJoined(data []byte) {
	var p loto.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("[Session] bad participantJoined payload: %v\n", err)
		return
	}

	c.mu.Lock()
	c.state = loto.Fold(c.state, p)
	notify := c.onChange
	snapshot := c.state.Clone()
	c.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}
