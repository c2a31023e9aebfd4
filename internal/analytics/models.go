package analytics

import "time"

type SessionStats struct {
	SessionID     string
	RoomCode      string
	Draws         int
	AutoDraws     int
	FirstDrawAt   *time.Time
	LastDrawAt    *time.Time
	AvgIntervalMs float64
	Completed     bool // all 90 numbers called
}

type NumberFrequency struct {
	Number int
	Count  int
}

type RecentSession struct {
	ID        string
	RoomCode  string
	StartedAt *time.Time
	EndedAt   *time.Time
	Draws     int
}
