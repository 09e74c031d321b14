package scoring

import (
	"time"

	"github.com/google/uuid"
)

// RatingRecord is the current skill state of one participant in one game
// type. There is at most one row per (participant, game type); it is created
// on the participant's first settled result and never deleted.
//
// Version backs the optimistic concurrency check: every settled match bumps
// it by one, and an update that matches a stale version writes nothing.
type RatingRecord struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	ParticipantID   uuid.UUID       `db:"participant_id" json:"participant_id"`
	ParticipantType ParticipantType `db:"participant_type" json:"participant_type"`
	GameTypeID      uuid.UUID       `db:"game_type_id" json:"game_type_id"`
	CurrentRating   int             `db:"current_rating" json:"current_rating"`
	GamesPlayed     int             `db:"games_played" json:"games_played"`
	IsProvisional   bool            `db:"is_provisional" json:"is_provisional"`
	Version         int             `db:"version" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (r *RatingRecord) Participant() Participant {
	return Participant{ID: r.ParticipantID, Type: r.ParticipantType}
}

// RatingHistoryEntry is append-only: one row per settled match per side,
// never updated or deleted. A disputed match is compensated with a second
// row (IsReversal set), not rewritten.
//
// Delta is recorded unclamped; RatingAfter is the value actually applied,
// so a floor clamp stays visible in the log.
type RatingHistoryEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	ParticipantID   uuid.UUID       `db:"participant_id" json:"participant_id"`
	ParticipantType ParticipantType `db:"participant_type" json:"participant_type"`
	GameTypeID      uuid.UUID       `db:"game_type_id" json:"game_type_id"`
	MatchID         uuid.UUID       `db:"match_id" json:"match_id"`
	RatingBefore    int             `db:"rating_before" json:"rating_before"`
	RatingAfter     int             `db:"rating_after" json:"rating_after"`
	Delta           int             `db:"delta" json:"delta"`
	IsReversal      bool            `db:"is_reversal" json:"is_reversal"`
	OccurredAt      time.Time       `db:"occurred_at" json:"occurred_at"`
}
