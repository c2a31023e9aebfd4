package pubsub

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

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

func TestEmit_LocalEchoIsSynchronous(t *testing.T) {
	b := NewBroker()
	c := b.Subscribe("room1")
	defer c.Close()

	var got []byte
	c.On("ping", func(data []byte) {
		got = data
	})

	c.Emit("ping", map[string]int{"n": 7})

	// No waiting: local handlers run inside Emit
	if got == nil {
		t.Fatal("local handler was not invoked synchronously")
	}
	var m map[string]int
	if err := json.Unmarshal(got, &m); err != nil || m["n"] != 7 {
		t.Errorf("payload = %s", got)
	}
}

func TestEmit_ReachesOtherSubscribers(t *testing.T) {
	b := NewBroker()
	sender := b.Subscribe("room1")
	receiver := b.Subscribe("room1")
	defer sender.Close()
	defer receiver.Close()

	var mu sync.Mutex
	var got []byte
	receiver.On("ping", func(data []byte) {
		mu.Lock()
		got = data
		mu.Unlock()
	})

	sender.Emit("ping", "hello")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, "remote subscriber never received the event")

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got, []byte(`"hello"`)) {
		t.Errorf("payload = %s, want %q", got, `"hello"`)
	}
}

func TestRoomIsolation(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("roomA")
	other := b.Subscribe("roomB")
	defer a.Close()
	defer other.Close()

	var mu sync.Mutex
	leaked := false
	other.On("ping", func([]byte) {
		mu.Lock()
		leaked = true
		mu.Unlock()
	})

	a.Emit("ping", 1)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if leaked {
		t.Error("event crossed room boundary")
	}
}

func TestOn_MultipleHandlersInRegistrationOrder(t *testing.T) {
	b := NewBroker()
	c := b.Subscribe("room1")
	defer c.Close()

	var order []int
	c.On("ev", func([]byte) { order = append(order, 1) })
	c.On("ev", func([]byte) { order = append(order, 2) })
	c.On("ev", func([]byte) { order = append(order, 3) })

	c.Emit("ev", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("handler order = %v, want [1 2 3]", order)
	}
}

func TestPerSenderOrdering(t *testing.T) {
	b := NewBroker()
	sender := b.Subscribe("room1")
	receiver := b.Subscribe("room1")
	defer sender.Close()
	defer receiver.Close()

	var mu sync.Mutex
	var got []int
	receiver.On("n", func(data []byte) {
		var n int
		json.Unmarshal(data, &n)
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		sender.Emit("n", i)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 20
	}, "receiver did not get all events")

	mu.Lock()
	defer mu.Unlock()
	for i, n := range got {
		if n != i {
			t.Fatalf("events out of order: got[%d] = %d", i, n)
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	b := NewBroker()
	c := b.Subscribe("room1")

	c.Close()
	c.Close() // must not panic

	if b.Subscribers("room1") != 0 {
		t.Errorf("subscribers = %d after close, want 0", b.Subscribers("room1"))
	}
}

func TestClose_StopsDelivery(t *testing.T) {
	b := NewBroker()
	sender := b.Subscribe("room1")
	receiver := b.Subscribe("room1")
	defer sender.Close()

	var mu sync.Mutex
	count := 0
	receiver.On("ev", func([]byte) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	receiver.Close()
	sender.Emit("ev", nil)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("closed subscriber received %d events", count)
	}
}

func TestEmit_AfterCloseIsNoOp(t *testing.T) {
	b := NewBroker()
	c := b.Subscribe("room1")

	invoked := false
	c.On("ev", func([]byte) { invoked = true })

	c.Close()
	c.Emit("ev", nil)

	if invoked {
		t.Error("Emit after Close delivered locally")
	}
}

func TestSubscribers_Counts(t *testing.T) {
	b := NewBroker()
	c1 := b.Subscribe("room1")
	c2 := b.Subscribe("room1")

	if b.Subscribers("room1") != 2 {
		t.Errorf("subscribers = %d, want 2", b.Subscribers("room1"))
	}

	c1.Close()
	c2.Close()

	if b.Subscribers("room1") != 0 {
		t.Errorf("subscribers = %d after closes, want 0", b.Subscribers("room1"))
	}
}
