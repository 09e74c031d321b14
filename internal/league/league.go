package league

import (
	"time"

	"github.com/google/uuid"
)

// A League is the tenant boundary: every event, game type, team and
// placeholder member hangs off exactly one league.
type League struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// An Event is a scoring scope within a league (a season, a ladder night,
// a one-off cup). Point entries and leaderboards are per event.
type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LeagueID  uuid.UUID `db:"league_id" json:"league_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// A GameType is a rating scope ("Ping Pong 1v1", "Foosball 2v2").
// Ratings are never compared across game types.
type GameType struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LeagueID  uuid.UUID `db:"league_id" json:"league_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Team struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LeagueID  uuid.UUID `db:"league_id" json:"league_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type TeamMember struct {
	TeamID uuid.UUID `db:"team_id" json:"team_id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`
}

// A PlaceholderMember stands in for someone without an account yet; results
// recorded against it survive a later claim by a real user.
type PlaceholderMember struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LeagueID  uuid.UUID `db:"league_id" json:"league_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
