package store

import (
	"context"

	"clubladder/internal/league"
	"clubladder/internal/scoring"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type LeagueStore struct {
	db *sqlx.DB
}

const (
	createLeagueQuery = `
        INSERT INTO leagues (id, owner_id, name, created_at)
        VALUES (:id, :owner_id, :name, :created_at)
    `
	createEventQuery = `
        INSERT INTO events (id, league_id, name, created_at)
        VALUES (:id, :league_id, :name, :created_at)
    `
	createGameTypeQuery = `
        INSERT INTO game_types (id, league_id, name, created_at)
        VALUES (:id, :league_id, :name, :created_at)
    `
	createTeamQuery = `
        INSERT INTO teams (id, league_id, name, created_at)
        VALUES (:id, :league_id, :name, :created_at)
    `
	createPlaceholderQuery = `
        INSERT INTO placeholder_members (id, league_id, name, created_at)
        VALUES (:id, :league_id, :name, :created_at)
    `
	addTeamMemberQuery = `
        INSERT INTO team_members (team_id, user_id) VALUES (:team_id, :user_id)
    `
)

func NewLeagueStore(db *sqlx.DB) *LeagueStore {
	return &LeagueStore{db: db}
}

func (s *LeagueStore) CreateLeague(ctx context.Context, l *league.League) error {
	_, err := s.db.NamedExecContext(ctx, createLeagueQuery, l)
	return err
}

func (s *LeagueStore) GetLeague(ctx context.Context, id uuid.UUID) (*league.League, error) {
	var l league.League
	err := s.db.GetContext(ctx, &l, "SELECT * FROM leagues WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *LeagueStore) ListLeaguesByOwner(ctx context.Context, ownerID uuid.UUID) ([]league.League, error) {
	var leagues []league.League
	err := s.db.SelectContext(ctx, &leagues, "SELECT * FROM leagues WHERE owner_id = ? ORDER BY created_at DESC", ownerID)
	return leagues, err
}

func (s *LeagueStore) CreateEvent(ctx context.Context, e *league.Event) error {
	_, err := s.db.NamedExecContext(ctx, createEventQuery, e)
	return err
}

func (s *LeagueStore) GetEvent(ctx context.Context, id uuid.UUID) (*league.Event, error) {
	var e league.Event
	err := s.db.GetContext(ctx, &e, "SELECT * FROM events WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *LeagueStore) ListEvents(ctx context.Context, leagueID uuid.UUID) ([]league.Event, error) {
	var events []league.Event
	err := s.db.SelectContext(ctx, &events, "SELECT * FROM events WHERE league_id = ? ORDER BY created_at DESC", leagueID)
	return events, err
}

func (s *LeagueStore) CreateGameType(ctx context.Context, gt *league.GameType) error {
	_, err := s.db.NamedExecContext(ctx, createGameTypeQuery, gt)
	return err
}

func (s *LeagueStore) GetGameType(ctx context.Context, id uuid.UUID) (*league.GameType, error) {
	var gt league.GameType
	err := s.db.GetContext(ctx, &gt, "SELECT * FROM game_types WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &gt, nil
}

func (s *LeagueStore) ListGameTypes(ctx context.Context, leagueID uuid.UUID) ([]league.GameType, error) {
	var gts []league.GameType
	err := s.db.SelectContext(ctx, &gts, "SELECT * FROM game_types WHERE league_id = ? ORDER BY created_at DESC", leagueID)
	return gts, err
}

func (s *LeagueStore) CreateTeam(ctx context.Context, t *league.Team) error {
	_, err := s.db.NamedExecContext(ctx, createTeamQuery, t)
	return err
}

func (s *LeagueStore) AddTeamMembers(ctx context.Context, teamID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]league.TeamMember, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, league.TeamMember{TeamID: teamID, UserID: id})
	}
	_, err := s.db.NamedExecContext(ctx, addTeamMemberQuery, rows)
	return err
}

func (s *LeagueStore) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, "SELECT user_id FROM team_members WHERE team_id = ?", teamID)
	return ids, err
}

func (s *LeagueStore) CreatePlaceholderMember(ctx context.Context, p *league.PlaceholderMember) error {
	_, err := s.db.NamedExecContext(ctx, createPlaceholderQuery, p)
	return err
}

// DisplayNames resolves readable names for a mixed set of participants in
// three batched queries, one per variant. Participants with no backing row
// are simply absent from the result; callers fall back as they see fit.
func (s *LeagueStore) DisplayNames(ctx context.Context, participants []scoring.Participant) (map[string]string, error) {
	byType := map[scoring.ParticipantType][]uuid.UUID{}
	for _, p := range participants {
		byType[p.Type] = append(byType[p.Type], p.ID)
	}

	tables := map[scoring.ParticipantType]string{
		scoring.ParticipantUser:        "SELECT id, username AS name FROM users WHERE id IN (?)",
		scoring.ParticipantTeam:        "SELECT id, name FROM teams WHERE id IN (?)",
		scoring.ParticipantPlaceholder: "SELECT id, name FROM placeholder_members WHERE id IN (?)",
	}

	names := make(map[string]string, len(participants))
	for ptype, ids := range byType {
		if len(ids) == 0 {
			continue
		}
		query, args, err := sqlx.In(tables[ptype], ids)
		if err != nil {
			return nil, err
		}
		var rows []struct {
			ID   uuid.UUID `db:"id"`
			Name string    `db:"name"`
		}
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, err
		}
		for _, r := range rows {
			names[scoring.Participant{ID: r.ID, Type: ptype}.Key()] = r.Name
		}
	}
	return names, nil
}
