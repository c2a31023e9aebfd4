package analytics

import (
	"fmt"

	"lotolive/internal/db"
	"lotolive/internal/loto"
)

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

func (q *Queries) GetSessionStats(sessionID string) (*SessionStats, error) {
	stats := &SessionStats{
		SessionID: sessionID,
	}

	err := q.DB.QueryRow(`
		SELECT s.room_code,
			COUNT(de.id),
			COUNT(de.id) FILTER (WHERE de.auto_mode),
			MIN(de.drawn_at),
			MAX(de.drawn_at)
		FROM sessions s
		LEFT JOIN draw_events de ON de.session_id = s.id
		WHERE s.id = $1
		GROUP BY s.room_code
	`, sessionID).Scan(&stats.RoomCode, &stats.Draws, &stats.AutoDraws, &stats.FirstDrawAt, &stats.LastDrawAt)
	if err != nil {
		return nil, fmt.Errorf("getting session stats: %w", err)
	}

	if stats.Draws > 1 && stats.FirstDrawAt != nil && stats.LastDrawAt != nil {
		span := stats.LastDrawAt.Sub(*stats.FirstDrawAt)
		stats.AvgIntervalMs = float64(span.Milliseconds()) / float64(stats.Draws-1)
	}
	stats.Completed = stats.Draws == loto.MaxNumber
	return stats, nil
}

// GetNumberFrequency returns the most-called numbers across all recorded
// sessions.
func (q *Queries) GetNumberFrequency(limit int) ([]NumberFrequency, error) {
	rows, err := q.DB.Query(`
		SELECT number, COUNT(*) AS calls
		FROM draw_events
		GROUP BY number
		ORDER BY calls DESC, number ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("getting number frequency: %w", err)
	}
	defer rows.Close()

	var freqs []NumberFrequency
	for rows.Next() {
		var f NumberFrequency
		if err := rows.Scan(&f.Number, &f.Count); err != nil {
			return nil, fmt.Errorf("scanning number frequency: %w", err)
		}
		freqs = append(freqs, f)
	}
	return freqs, rows.Err()
}

func (q *Queries) ListRecentSessions(limit int) ([]RecentSession, error) {
	rows, err := q.DB.Query(`
		SELECT s.id, s.room_code, s.started_at, s.ended_at, COUNT(de.id)
		FROM sessions s
		LEFT JOIN draw_events de ON de.session_id = s.id
		GROUP BY s.id, s.room_code, s.started_at, s.ended_at
		ORDER BY s.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []RecentSession
	for rows.Next() {
		var s RecentSession
		if err := rows.Scan(&s.ID, &s.RoomCode, &s.StartedAt, &s.EndedAt, &s.Draws); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
