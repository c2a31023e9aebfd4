package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"lotolive/internal/config"
	"lotolive/internal/db"
	"lotolive/internal/pubsub"
	"lotolive/internal/rooms"
	"lotolive/internal/verse"
	"lotolive/internal/wshub"
)

func Run() error {
	appCfg := config.Load()

	srv := &Server{
		Cfg:    appCfg,
		Broker: pubsub.NewBroker(),
		Rooms:  rooms.NewStore(),
		Hub:    wshub.NewHub(),
		Verses: verse.NewGenerator(
			appCfg.GeminiAPIKey,
			appCfg.VerseModel,
			appCfg.SpeechModel,
			time.Duration(appCfg.VerseTimeout)*time.Second,
		),
	}

	if appCfg.GeminiAPIKey == "" {
		log.Println("[Verse] GEMINI_API_KEY not set, using fallback verses only")
	}

	// Optional database connection
	if appCfg.DatabaseURL != "" {
		database, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Failed to connect: %v (running without database)\n", err)
		} else {
			if err := database.Migrate(); err != nil {
				log.Printf("[DB] Migration failed: %v\n", err)
			}
			srv.DB = database
			srv.DrawBuffer = make(chan db.DrawEvent, 1000)
			go drawBatchWriter(database, srv.DrawBuffer)
			log.Println("[DB] Database connected and migrations applied")
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running without database")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rooms/create", srv.handleCreateRoom)
	mux.HandleFunc("/rooms/{code}", srv.handleRoomInfo)
	mux.HandleFunc("/rooms/{code}/qr", srv.handleRoomQR)
	mux.HandleFunc("/ws", srv.handleWS)
	mux.HandleFunc("/stats/sessions", srv.handleRecentSessions)
	mux.HandleFunc("/stats/sessions/{id}", srv.handleSessionStats)
	mux.HandleFunc("/stats/numbers", srv.handleNumberFrequency)
	mux.HandleFunc("/health", srv.handleHealth)

	addr := "0.0.0.0:" + appCfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
	return http.ListenAndServe(addr, mux)
}

// drawBatchWriter drains the draw buffer into the database in small batches
// so the draw path never waits on a write.
func drawBatchWriter(database *db.DB, buffer chan db.DrawEvent) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	batch := make([]db.DrawEvent, 0, 50)

	for {
		select {
		case ev := <-buffer:
			batch = append(batch, ev)
			if len(batch) >= 50 {
				if err := database.BatchRecordDraws(batch); err != nil {
					log.Printf("[DB] BatchRecordDraws error: %v\n", err)
				}
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				if err := database.BatchRecordDraws(batch); err != nil {
					log.Printf("[DB] BatchRecordDraws error: %v\n", err)
				}
				batch = batch[:0]
			}
		}
	}
}
