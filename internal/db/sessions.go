package db

import (
	"fmt"
	"time"
)

type SessionRecord struct {
	ID        string
	RoomCode  string
	HostID    string
	StartedAt *time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
}

func (d *DB) CreateSession(roomCode, hostID string) (string, error) {
	var id string
	err := d.conn.QueryRow(`
		INSERT INTO sessions (room_code, host_id, started_at)
		VALUES ($1, $2, now())
		RETURNING id
	`, roomCode, hostID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

func (d *DB) EndSession(sessionID string) error {
	_, err := d.conn.Exec(`
		UPDATE sessions SET ended_at = now() WHERE id = $1
	`, sessionID)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

func (d *DB) GetSession(id string) (*SessionRecord, error) {
	var s SessionRecord
	err := d.conn.QueryRow(`
		SELECT id, room_code, host_id, started_at, ended_at, created_at
		FROM sessions WHERE id = $1
	`, id).Scan(&s.ID, &s.RoomCode, &s.HostID, &s.StartedAt, &s.EndedAt, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &s, nil
}
