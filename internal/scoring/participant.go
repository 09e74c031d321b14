package scoring

import "github.com/google/uuid"

// ParticipantType discriminates the three identity variants that can hold a
// rating or appear on a scoresheet. They share no behavior, only a key shape.
type ParticipantType string

const (
	ParticipantUser        ParticipantType = "user"
	ParticipantTeam        ParticipantType = "team"
	ParticipantPlaceholder ParticipantType = "placeholder"
)

func (t ParticipantType) Valid() bool {
	switch t {
	case ParticipantUser, ParticipantTeam, ParticipantPlaceholder:
		return true
	}
	return false
}

type Participant struct {
	ID   uuid.UUID       `db:"participant_id" json:"participant_id"`
	Type ParticipantType `db:"participant_type" json:"participant_type"`
}

// Key returns a stable string identity usable as a map key and as the final
// deterministic ordering fallback in standings.
func (p Participant) Key() string {
	return string(p.Type) + ":" + p.ID.String()
}
