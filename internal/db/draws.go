package db

import (
	"fmt"
	"time"
)

type DrawEvent struct {
	SessionID string
	Seq       int
	Number    int
	Verse     string
	AutoMode  bool
	DrawnAt   time.Time
}

func (d *DB) BatchRecordDraws(events []DrawEvent) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO draw_events (session_id, seq, number, verse, auto_mode, drawn_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(ev.SessionID, ev.Seq, ev.Number, ev.Verse, ev.AutoMode, ev.DrawnAt); err != nil {
			return fmt.Errorf("recording draw in batch: %w", err)
		}
	}

	return tx.Commit()
}
