// Package pubsub is the room transport: a per-room broadcast channel carrying
// named events with a JSON payload. Delivery is best-effort and
// fire-and-forget — a subscriber that is not listening silently misses the
// message. Local echo is synchronous; remote fan-out is asynchronous and
// preserves per-sender order only.
package pubsub

import (
	"encoding/json"
	"log"
	"sync"
)

// Handler receives the JSON-encoded payload of one event.
type Handler func(data []byte)

const inboxSize = 64

type envelope struct {
	event string
	data  []byte
}

// Broker owns every room's subscriber set. Channels with different room ids
// never observe each other's traffic.
type Broker struct {
	mu    sync.Mutex
	rooms map[string]map[*Channel]bool
}

func NewBroker() *Broker {
	return &Broker{
		rooms: make(map[string]map[*Channel]bool),
	}
}

// Subscribe opens a channel scoped to roomID and starts its dispatch loop.
func (b *Broker) Subscribe(roomID string) *Channel {
	c := &Channel{
		broker:   b,
		roomID:   roomID,
		handlers: make(map[string][]Handler),
		inbox:    make(chan envelope, inboxSize),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	subs := b.rooms[roomID]
	if subs == nil {
		subs = make(map[*Channel]bool)
		b.rooms[roomID] = subs
	}
	subs[c] = true
	b.mu.Unlock()

	go c.dispatch()
	return c
}

// Subscribers reports how many channels are currently open for a room.
func (b *Broker) Subscribers(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[roomID])
}

func (b *Broker) unsubscribe(c *Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.rooms[c.roomID]
	delete(subs, c)
	if len(subs) == 0 {
		delete(b.rooms, c.roomID)
	}
}

func (b *Broker) peers(c *Channel) []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	peers := make([]*Channel, 0, len(b.rooms[c.roomID]))
	for sub := range b.rooms[c.roomID] {
		if sub != c {
			peers = append(peers, sub)
		}
	}
	return peers
}

// Channel is one subscriber's handle on a room.
type Channel struct {
	broker *Broker
	roomID string

	mu       sync.Mutex
	handlers map[string][]Handler
	closed   bool

	inbox chan envelope
	done  chan struct{}
}

// On registers a handler for event. Multiple handlers per event are all
// invoked, in registration order.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Emit delivers payload to this channel's own handlers synchronously, then to
// every other subscriber of the room asynchronously. No acknowledgement; a
// peer whose inbox is full misses the message.
func (c *Channel) Emit(event string, payload any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[PubSub] marshal %s: %v\n", event, err)
		return
	}

	c.invoke(event, data)

	for _, peer := range c.broker.peers(c) {
		select {
		case peer.inbox <- envelope{event: event, data: data}:
		default:
			// inbox full, drop
		}
	}
}

// Close releases the channel; no further deliveries occur. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.broker.unsubscribe(c)
	close(c.done)
}

func (c *Channel) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.inbox:
			c.invoke(env.event, env.data)
		}
	}
}

func (c *Channel) invoke(event string, data []byte) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}
