package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"lotolive/internal/analytics"
)

const defaultStatsLimit = 20

func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Stats unavailable without a database", http.StatusServiceUnavailable)
		return
	}

	q := analytics.NewQueries(s.DB)
	sessions, err := q.ListRecentSessions(statsLimit(r))
	if err != nil {
		log.Printf("[Handle:Stats] ListRecentSessions error: %v\n", err)
		http.Error(w, "Failed to load sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Stats unavailable without a database", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	rec, err := s.DB.GetSession(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Printf("[Handle:Stats] GetSession error: %v\n", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	q := analytics.NewQueries(s.DB)
	stats, err := q.GetSessionStats(id)
	if err != nil {
		log.Printf("[Handle:Stats] GetSessionStats error: %v\n", err)
		http.Error(w, "Failed to load session stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":            rec.ID,
		"roomCode":      rec.RoomCode,
		"startedAt":     rec.StartedAt,
		"endedAt":       rec.EndedAt,
		"draws":         stats.Draws,
		"autoDraws":     stats.AutoDraws,
		"avgIntervalMs": stats.AvgIntervalMs,
		"completed":     stats.Completed,
	})
}

func (s *Server) handleNumberFrequency(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Stats unavailable without a database", http.StatusServiceUnavailable)
		return
	}

	q := analytics.NewQueries(s.DB)
	freqs, err := q.GetNumberFrequency(statsLimit(r))
	if err != nil {
		log.Printf("[Handle:Stats] GetNumberFrequency error: %v\n", err)
		http.Error(w, "Failed to load number frequency", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(freqs)
}

func statsLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return defaultStatsLimit
}
