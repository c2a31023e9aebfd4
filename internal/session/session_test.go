package session

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"lotolive/internal/loto"
	"lotolive/internal/pubsub"
)

type stubVerser struct{}

func (stubVerser) Verse(_ context.Context, number int) string {
	return fmt.Sprintf("verse %d", number)
}

func newJoined(t *testing.T, broker *pubsub.Broker, room, id, name string, host bool) *Controller {
	t.Helper()
	c := NewController(stubVerser{})
	c.Join(broker, loto.Participant{ID: id, Name: name, IsHost: host, JoinedAt: time.Now().UnixMilli()}, room)
	t.Cleanup(c.Leave)
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// stateWith builds a state with every number except the given ones drawn, so
// a draw is forced to pick from the leftovers.
func stateWith(room string, undrawn ...int) loto.GameState {
	keep := make(map[int]bool)
	for _, n := range undrawn {
		keep[n] = true
	}
	s := loto.NewState(room)
	for n := 1; n <= loto.MaxNumber; n++ {
		if !keep[n] {
			s = loto.Draw(s, n, "")
		}
	}
	return s
}

func TestJoin_SelfRegistration(t *testing.T) {
	broker := pubsub.NewBroker()
	c := newJoined(t, broker, "AB12CD", "p1", "Alice", true)

	st := c.State()
	if len(st.Participants) != 1 || st.Participants[0].ID != "p1" {
		t.Errorf("roster = %+v, want self-registered Alice", st.Participants)
	}
	if st.SessionID != "AB12CD" {
		t.Errorf("sessionId = %q", st.SessionID)
	}
	if st.Status != loto.StatusLobby {
		t.Errorf("status = %q, want lobby", st.Status)
	}
}

func TestJoin_PeersSeeEachOther(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "XYZ999", "h1", "Host", true)
	guest := newJoined(t, broker, "XYZ999", "g1", "Guest", false)

	// Host joined first, so it only learns about the guest via the channel.
	waitFor(t, func() bool {
		return len(host.State().Participants) == 2
	}, "host never saw the guest's announcement")

	// The guest joined second and missed the host's announcement: lost
	// presence events are tolerated until the next full-state broadcast.
	if got := len(guest.State().Participants); got != 1 {
		t.Errorf("guest roster size = %d, want 1 (only itself)", got)
	}
}

func TestDrawNext_Host(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)

	if !host.DrawNext(context.Background()) {
		t.Fatal("DrawNext() = false, want true")
	}

	st := host.State()
	if len(st.Numbers) != 1 {
		t.Fatalf("numbers = %v, want one draw", st.Numbers)
	}
	n := st.Numbers[0]
	if n < 1 || n > loto.MaxNumber {
		t.Errorf("drew %d, out of range", n)
	}
	if st.CurrentNumber == nil || *st.CurrentNumber != n {
		t.Error("currentNumber should equal the last drawn number")
	}
	if st.Status != loto.StatusPlaying {
		t.Errorf("status = %q, want playing", st.Status)
	}
	if st.LastRao != fmt.Sprintf("verse %d", n) {
		t.Errorf("lastRao = %q", st.LastRao)
	}
}

func TestDrawNext_NonHostIsNoOp(t *testing.T) {
	broker := pubsub.NewBroker()
	guest := newJoined(t, broker, "AB12CD", "g1", "Guest", false)

	if guest.DrawNext(context.Background()) {
		t.Error("non-host DrawNext() = true, want false")
	}
	if len(guest.State().Numbers) != 0 {
		t.Error("non-host draw changed state")
	}
}

func TestDrawNext_GuestObservesHostDraw(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "XYZ999", "h1", "Host", true)
	guest := newJoined(t, broker, "XYZ999", "g1", "Guest", false)

	// Force the pool down to {7} so the draw is deterministic.
	guest.chEmitState(t, stateWith("XYZ999", 7))
	waitFor(t, func() bool {
		return len(host.State().Numbers) == loto.MaxNumber-1
	}, "host never adopted the primed state")

	if !host.DrawNext(context.Background()) {
		t.Fatal("DrawNext() = false with one number left")
	}

	waitFor(t, func() bool {
		st := guest.State()
		return st.CurrentNumber != nil && *st.CurrentNumber == 7
	}, "guest never observed the host's draw of 7")
}

func TestDrawNext_Exhausted(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)

	for i := 0; i < loto.MaxNumber; i++ {
		if !host.DrawNext(context.Background()) {
			t.Fatalf("draw %d returned false before exhaustion", i+1)
		}
	}

	st := host.State()
	if len(st.Numbers) != loto.MaxNumber {
		t.Fatalf("numbers length = %d, want %d", len(st.Numbers), loto.MaxNumber)
	}

	// The 91st attempt is a no-op.
	if host.DrawNext(context.Background()) {
		t.Error("draw on exhausted pool returned true")
	}
	if len(host.State().Numbers) != loto.MaxNumber {
		t.Error("exhausted draw changed state")
	}
}

func TestReset(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)
	guest := newJoined(t, broker, "AB12CD", "g1", "Guest", false)

	waitFor(t, func() bool { return len(host.State().Participants) == 2 }, "roster sync")

	host.DrawNext(context.Background())
	host.Reset()

	st := host.State()
	if len(st.Numbers) != 0 || st.CurrentNumber != nil || st.LastRao != "" {
		t.Errorf("reset state = %+v, want cleared draws", st)
	}
	if st.Status != loto.StatusLobby {
		t.Errorf("status = %q, want lobby", st.Status)
	}
	if len(st.Participants) != 2 {
		t.Errorf("roster size = %d, want 2 (reset keeps participants)", len(st.Participants))
	}
	if st.SessionID != "AB12CD" {
		t.Errorf("sessionId = %q, want unchanged", st.SessionID)
	}

	waitFor(t, func() bool {
		return guest.State().Status == loto.StatusLobby && len(guest.State().Numbers) == 0
	}, "guest never adopted the reset")
}

func TestReset_NonHostIsNoOp(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)
	guest := newJoined(t, broker, "AB12CD", "g1", "Guest", false)

	host.DrawNext(context.Background())
	waitFor(t, func() bool { return len(guest.State().Numbers) == 1 }, "guest sync")

	guest.Reset()
	time.Sleep(50 * time.Millisecond)

	if len(host.State().Numbers) != 1 {
		t.Error("non-host reset changed the host's state")
	}
}

func TestStateUpdate_ReplacesWholesale(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)
	guest := newJoined(t, broker, "AB12CD", "g1", "Guest", false)

	primed := stateWith("AB12CD", 1, 2, 3)
	primed.Participants = []loto.Participant{{ID: "x", Name: "OnlyX"}}
	guest.chEmitState(t, primed)

	waitFor(t, func() bool {
		return len(host.State().Numbers) == len(primed.Numbers)
	}, "host never adopted broadcast")

	// Replace, not merge: the host's own roster entry is gone because the
	// broadcast payload did not contain it.
	got := host.State()
	if !reflect.DeepEqual(got.Participants, primed.Participants) {
		t.Errorf("roster = %+v, want exactly the broadcast's %+v", got.Participants, primed.Participants)
	}
	if !reflect.DeepEqual(got.Numbers, primed.Numbers) {
		t.Error("numbers differ from broadcast payload")
	}
}

func TestAnnounce_OnNewNumber(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)

	var announced []int
	host.SetAnnounce(func(n int) { announced = append(announced, n) })

	host.DrawNext(context.Background())

	if len(announced) != 1 {
		t.Fatalf("announce called %d times, want 1", len(announced))
	}
	if announced[0] != host.State().Numbers[0] {
		t.Errorf("announced %d, want the drawn number", announced[0])
	}
}

func TestAnnounce_SuppressedWhenVoiceOff(t *testing.T) {
	broker := pubsub.NewBroker()
	host := newJoined(t, broker, "AB12CD", "h1", "Host", true)

	var announced []int
	host.SetAnnounce(func(n int) { announced = append(announced, n) })

	if on := host.ToggleVoice(); on {
		t.Fatal("ToggleVoice() = true, want false after first toggle")
	}
	host.DrawNext(context.Background())

	if len(announced) != 0 {
		t.Errorf("announce called %d times with voice off", len(announced))
	}
}

// chEmitState publishes a full-state broadcast from this controller's channel,
// standing in for a peer's stateUpdate.
func (c *Controller) chEmitState(t *testing.T, st loto.GameState) {
	t.Helper()
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	ch.Emit(EventStateUpdate, st)
}
