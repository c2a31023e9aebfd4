package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"lotolive/internal/autodraw"
	"lotolive/internal/config"
	"lotolive/internal/db"
	"lotolive/internal/loto"
	"lotolive/internal/pubsub"
	"lotolive/internal/rooms"
	"lotolive/internal/session"
	"lotolive/internal/utility"
	"lotolive/internal/verse"
	"lotolive/internal/wshub"
)

type Server struct {
	Cfg        config.Config
	Broker     *pubsub.Broker
	Rooms      *rooms.Store
	Hub        *wshub.Hub
	Verses     *verse.Generator
	DB         *db.DB            // nil if no database configured
	DrawBuffer chan db.DrawEvent // nil if no database configured
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fmt.Println("[Handle:CreateRoom] Request Received")

	room, err := s.Rooms.Create("")
	if err != nil {
		log.Println(err)
		http.Error(w, "Failed to create room", http.StatusInternalServerError)
		return
	}

	fmt.Printf("[Handle:CreateRoom] Created room %s\n", room.Code)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"code": room.Code})
}

func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	code := rooms.Normalize(r.PathValue("code"))
	room := s.Rooms.Get(code)
	if room == nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"code":         room.Code,
		"participants": s.Hub.Count(room.Code),
		"createdAt":    room.CreatedAt,
	})
}

// handleRoomQR renders a scannable join link for the room, for sharing the
// code across the table.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := rooms.Normalize(r.PathValue("code"))
	room := s.Rooms.Get(code)
	if room == nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	joinURL := fmt.Sprintf("%s://%s/?room=%s", scheme, r.Host, room.Code)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("[Handle:RoomQR] encode error: %v\n", err)
		http.Error(w, "Failed to render QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// handleWS attaches one participant to a room. Each connection gets its own
// session controller holding a private GameState copy; hosts additionally get
// an auto-draw scheduler. Everything the client sees arrives as pushed
// frames.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	fmt.Println("[Handle:WS] Request Received")

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	code := rooms.Normalize(r.URL.Query().Get("room"))
	asHost := r.URL.Query().Get("host") == "1"

	if name == "" || code == "" {
		http.Error(w, "name and room are required", http.StatusBadRequest)
		return
	}

	p := loto.Participant{
		ID:       uuid.New().String(),
		Name:     name,
		IsHost:   asHost,
		JoinedAt: time.Now().UnixMilli(),
		Color:    utility.RandomColorHex(),
	}
	room := s.Rooms.GetOrCreate(code, p.ID, asHost)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[Handle:WS] accept error: %v\n", err)
		return
	}

	ctrl := session.NewController(s.Verses)

	var sched *autodraw.Scheduler
	if asHost {
		sched = autodraw.NewScheduler(
			func(ctx context.Context) bool { return ctrl.DrawNext(ctx) },
			time.Duration(s.Cfg.AutoSpeed*float64(time.Second)),
			time.Duration(s.Cfg.AutoSpeedMin*float64(time.Second)),
			time.Duration(s.Cfg.AutoSpeedMax*float64(time.Second)),
		)
	}

	client := wshub.NewClient(p, conn, ctrl, sched)

	var rec *drawRecorder
	if asHost && s.DB != nil {
		sessionID, err := s.DB.CreateSession(room.Code, p.ID)
		if err != nil {
			log.Printf("[DB] CreateSession error: %v\n", err)
		} else {
			rec = &drawRecorder{sessionID: sessionID, buffer: s.DrawBuffer, sched: sched}
		}
	}

	ctrl.SetOnChange(func(st loto.GameState) {
		client.PushState(st)
		if rec != nil {
			rec.observe(st)
		}
	})
	ctrl.SetAnnounce(func(n int) {
		s.Verses.Speak(fmt.Sprintf("Số %d!", n), func(text string, audio []byte) {
			client.PushSpeak(text, audio)
		})
	})
	if sched != nil {
		sched.SetOnTick(client.PushTimer)
		sched.SetOnStop(func(exhausted bool) {
			client.PushAuto(false, exhausted, sched.Speed())
		})
	}

	ctrl.Join(s.Broker, p, room.Code)
	s.Hub.Register(room.Code, client)
	defer func() {
		s.Hub.Unregister(room.Code, client)
		client.Close()
		if rec != nil {
			if err := s.DB.EndSession(rec.sessionID); err != nil {
				log.Printf("[DB] EndSession error: %v\n", err)
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	snapshot := ctrl.State()
	client.Push(wshub.ServerMessage{Type: wshub.FrameWelcome, You: &p, State: &snapshot})

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			status = "db_error"
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"%s","error":"%s"}`, status, err.Error())
			return
		}
	}
	fmt.Fprintf(w, `{"status":"%s"}`, status)
}

// drawRecorder turns state snapshots from the host's controller into draw
// events for the batch writer. Snapshots arrive from whichever goroutine
// emitted them (the host's own echo, the channel dispatch loop), so the
// cursor is mutex-guarded. seq never rewinds: a reset reuses the session
// record and the next game's draws continue the sequence.
type drawRecorder struct {
	sessionID string
	buffer    chan db.DrawEvent
	sched     *autodraw.Scheduler

	mu      sync.Mutex
	lastLen int
	seq     int
}

func (r *drawRecorder) observe(st loto.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(st.Numbers) < r.lastLen {
		// A reset clears the board entirely; a shorter non-empty board is a
		// stale out-of-order snapshot and is skipped.
		if len(st.Numbers) == 0 {
			r.lastLen = 0
		}
		return
	}
	for i := r.lastLen; i < len(st.Numbers); i++ {
		r.seq++
		// lastRao belongs to the current number only; backfilled rows
		// (a snapshot that caught up several draws at once) carry no verse.
		verse := ""
		if i == len(st.Numbers)-1 {
			verse = st.LastRao
		}
		ev := db.DrawEvent{
			SessionID: r.sessionID,
			Seq:       r.seq,
			Number:    st.Numbers[i],
			Verse:     verse,
			AutoMode:  r.sched != nil && r.sched.Running(),
			DrawnAt:   time.Now(),
		}
		select {
		case r.buffer <- ev:
		default:
			log.Println("[DB] Draw buffer full, dropping event")
		}
	}
	r.lastLen = len(st.Numbers)
}
