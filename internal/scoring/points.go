package scoring

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PointCategory string

const (
	CategoryMatch         PointCategory = "match"
	CategoryTournament    PointCategory = "tournament"
	CategoryDiscretionary PointCategory = "discretionary"
)

type Outcome string

const (
	OutcomeWin        Outcome = "win"
	OutcomeLoss       Outcome = "loss"
	OutcomeDraw       Outcome = "draw"
	OutcomePlacement  Outcome = "placement"
	OutcomeAward      Outcome = "award"
	OutcomePenalty    Outcome = "penalty"
	OutcomeCorrection Outcome = "correction"
)

// PointEntry is one atomic scoring contribution within an event, immutable
// once written. Team-attributed entries carry the team as the participant
// plus the contributing roster in point_entry_members.
type PointEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	EventID         uuid.UUID       `db:"event_id" json:"event_id"`
	Category        PointCategory   `db:"category" json:"category"`
	Outcome         Outcome         `db:"outcome" json:"outcome"`
	ParticipantID   uuid.UUID       `db:"participant_id" json:"participant_id"`
	ParticipantType ParticipantType `db:"participant_type" json:"participant_type"`
	TeamID          *uuid.UUID      `db:"team_id" json:"team_id,omitempty"`
	Points          int             `db:"points" json:"points"`
	Reason          *string         `db:"reason" json:"reason,omitempty"`
	SourceRef       *uuid.UUID      `db:"source_ref" json:"source_ref,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

func (e *PointEntry) Participant() Participant {
	return Participant{ID: e.ParticipantID, Type: e.ParticipantType}
}

// validSigns maps category+outcome to the allowed sign range of Points.
// A correction may go either way; everything else is pinned to one side.
var validSigns = map[PointCategory]map[Outcome]func(int) bool{
	CategoryMatch: {
		OutcomeWin:        nonNegative,
		OutcomeDraw:       nonNegative,
		OutcomeLoss:       nonNegative,
		OutcomePenalty:    nonPositive,
		OutcomeCorrection: anySign,
	},
	CategoryTournament: {
		OutcomePlacement:  nonNegative,
		OutcomePenalty:    nonPositive,
		OutcomeCorrection: anySign,
	},
	CategoryDiscretionary: {
		OutcomeAward:      nonNegative,
		OutcomePenalty:    nonPositive,
		OutcomeCorrection: anySign,
	},
}

func nonNegative(p int) bool { return p >= 0 }
func nonPositive(p int) bool { return p <= 0 }
func anySign(int) bool       { return true }

// ValidatePoints rejects a category/outcome/points combination before
// anything is written.
func ValidatePoints(category PointCategory, outcome Outcome, points int) error {
	outcomes, ok := validSigns[category]
	if !ok {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	check, ok := outcomes[outcome]
	if !ok {
		return fmt.Errorf("%w: outcome %q is not valid for category %q", ErrInvalidInput, outcome, category)
	}
	if !check(points) {
		return fmt.Errorf("%w: %d points out of range for %s/%s", ErrInvalidInput, points, category, outcome)
	}
	return nil
}

// LeaderboardEntry is derived on read, never stored.
type LeaderboardEntry struct {
	Participant Participant `json:"participant"`
	TotalPoints int         `json:"total_points"`
	Wins        int         `json:"wins"`
	Rank        int         `json:"rank"`
}
