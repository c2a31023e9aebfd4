// Package wshub connects browser clients to their session controllers over
// WebSocket. Each connection owns one controller (and, for the host, one
// auto-draw scheduler); frames out are state snapshots, countdown ticks and
// spoken announcements, frames in are pure command intents whose effects come
// back through the normal event path.
package wshub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"

	"lotolive/internal/autodraw"
	"lotolive/internal/loto"
	"lotolive/internal/session"
)

// Client intents. All are fire-and-forget: no intent has a reply, every
// effect arrives as a pushed frame.
const (
	IntentNext  = "next"
	IntentReset = "reset"
	IntentAuto  = "auto"
	IntentVoice = "voice"
	IntentSpeed = "speed"
)

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Type    string  `json:"t"`
	Seconds float64 `json:"s,omitempty"`
}

// Frame types sent to clients.
const (
	FrameWelcome = "welcome"
	FrameState   = "state"
	FrameTimer   = "timer"
	FrameSpeak   = "speak"
	FrameAuto    = "auto"
	FrameVoice   = "voice"
)

// ServerMessage is the JSON structure sent to clients. Audio is raw PCM,
// base64-encoded by the JSON marshaller.
type ServerMessage struct {
	Type      string            `json:"t"`
	You       *loto.Participant `json:"you,omitempty"`
	State     *loto.GameState   `json:"state,omitempty"`
	TimeLeft  float64           `json:"left,omitempty"`
	Text      string            `json:"text,omitempty"`
	Audio     []byte            `json:"audio,omitempty"`
	On        bool              `json:"on"`
	Exhausted bool              `json:"exhausted,omitempty"`
	Speed     float64           `json:"speed,omitempty"`
}

// Client represents a single WebSocket connection: one participant, one
// controller, and for hosts one scheduler.
type Client struct {
	Participant loto.Participant
	Conn        *websocket.Conn
	Ctrl        *session.Controller
	Sched       *autodraw.Scheduler // nil for guests
	send        chan []byte
}

func NewClient(p loto.Participant, conn *websocket.Conn, ctrl *session.Controller, sched *autodraw.Scheduler) *Client {
	return &Client{
		Participant: p,
		Conn:        conn,
		Ctrl:        ctrl,
		Sched:       sched,
		send:        make(chan []byte, 32),
	}
}

// Push queues a frame for delivery. Non-blocking: drops if the client's
// buffer is full, consistent with best-effort delivery everywhere else.
func (c *Client) Push(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WSHub] marshal error: %v\n", err)
		return
	}
	select {
	case c.send <- data:
	default:
		// Drop frame if channel full
	}
}

func (c *Client) PushState(st loto.GameState) {
	c.Push(ServerMessage{Type: FrameState, State: &st})
}

func (c *Client) PushTimer(remaining time.Duration) {
	c.Push(ServerMessage{Type: FrameTimer, TimeLeft: remaining.Seconds()})
}

func (c *Client) PushSpeak(text string, audio []byte) {
	c.Push(ServerMessage{Type: FrameSpeak, Text: text, Audio: audio})
}

func (c *Client) PushAuto(on bool, exhausted bool, speed time.Duration) {
	c.Push(ServerMessage{Type: FrameAuto, On: on, Exhausted: exhausted, Speed: speed.Seconds()})
}

// WritePump reads from the send channel and writes to the WebSocket
// connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// ReadPump reads client intents until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	for {
		_, data, err := c.Conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[WSHub] bad client message: %v\n", err)
			continue
		}
		c.HandleIntent(ctx, msg)
	}
}

// HandleIntent applies one command intent. Host-only intents from non-hosts
// are boundary no-ops.
func (c *Client) HandleIntent(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case IntentNext:
		if !c.Ctrl.IsHost() {
			return
		}
		// Manual draws don't mix with the auto loop.
		if c.Sched != nil && c.Sched.Running() {
			return
		}
		go c.Ctrl.DrawNext(ctx)

	case IntentReset:
		if !c.Ctrl.IsHost() {
			return
		}
		// Cancel the auto loop before wiping state so no scheduled draw
		// lands on the fresh board.
		if c.Sched != nil {
			c.Sched.Stop()
		}
		c.Ctrl.Reset()

	case IntentAuto:
		if c.Sched == nil || !c.Ctrl.IsHost() {
			return
		}
		if c.Sched.Running() {
			c.Sched.Stop()
		} else {
			c.Sched.Start()
			c.PushAuto(true, false, c.Sched.Speed())
		}

	case IntentVoice:
		on := c.Ctrl.ToggleVoice()
		c.Push(ServerMessage{Type: FrameVoice, On: on})

	case IntentSpeed:
		if c.Sched == nil || !c.Ctrl.IsHost() {
			return
		}
		applied := c.Sched.SetSpeed(time.Duration(msg.Seconds * float64(time.Second)))
		c.PushAuto(c.Sched.Running(), false, applied)

	default:
		log.Printf("[WSHub] unknown intent %q\n", msg.Type)
	}
}

// Close tears down the client's session: scheduler first so no draw fires
// into a closed channel.
func (c *Client) Close() {
	if c.Sched != nil {
		c.Sched.Stop()
	}
	c.Ctrl.Leave()
}

// Hub tracks connected clients per room, for observability only; delivery
// runs through each client's own controller.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // room code -> clients
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Register(roomCode string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[roomCode]
	if set == nil {
		set = make(map[*Client]bool)
		h.clients[roomCode] = set
	}
	set[c] = true
}

func (h *Hub) Unregister(roomCode string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[roomCode]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, roomCode)
	}
}

func (h *Hub) Count(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[roomCode])
}
