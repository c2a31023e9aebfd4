package rooms

import "time"

// Room is the server-side registry entry for a session. All game state lives
// in the participants' controllers; the registry only knows the code, who
// first claimed host and when the room appeared.
type Room struct {
	Code      string
	HostID    string
	CreatedAt time.Time
}
