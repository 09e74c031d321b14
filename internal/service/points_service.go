package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clubladder/internal/scoring"
	"clubladder/internal/store"
	"clubladder/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PointService records scoring contributions and folds them into per-
// participant totals. Entries are immutable; corrections are new entries.
type PointService struct {
	db      *sqlx.DB
	points  *store.PointStore
	leagues *store.LeagueStore
}

func NewPointService(db *sqlx.DB, points *store.PointStore, leagues *store.LeagueStore) *PointService {
	return &PointService{db: db, points: points, leagues: leagues}
}

// Totals is the folded score of one participant key within an event. Wins
// and FirstEntryAt feed the standings tie-break chain.
type Totals struct {
	Participant  scoring.Participant
	Points       int
	Wins         int
	FirstEntryAt time.Time
}

// MatchPointsInput is one side's scoring contribution from a settled match.
// Members lists the contributing users when the side is a team.
type MatchPointsInput struct {
	Participant scoring.Participant
	Outcome     scoring.Outcome
	Points      int
	Members     []uuid.UUID
}

// PlacementInput is one tournament finishing position worth points.
type PlacementInput struct {
	Participant scoring.Participant
	Place       int
	Points      int
	Members     []uuid.UUID
}

// ValidateMatchPoints runs every check RecordMatchPoints would apply,
// without writing anything. Callers composing a match submission across
// services run it first, so a doomed request fails before any other ledger
// has moved.
func (s *PointService) ValidateMatchPoints(ctx context.Context, eventID uuid.UUID, results []MatchPointsInput) error {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("%w: no match sides given", scoring.ErrInvalidInput)
	}
	for _, r := range results {
		switch r.Outcome {
		case scoring.OutcomeWin, scoring.OutcomeLoss, scoring.OutcomeDraw:
		default:
			return fmt.Errorf("%w: outcome %q is not a match result", scoring.ErrInvalidInput, r.Outcome)
		}
		if err := scoring.ValidatePoints(scoring.CategoryMatch, r.Outcome, r.Points); err != nil {
			return err
		}
	}
	return nil
}

// RecordMatchPoints writes one point entry per match side, category match.
// Everything is validated before the transaction opens, so a bad side
// leaves nothing behind.
func (s *PointService) RecordMatchPoints(ctx context.Context, eventID, matchID uuid.UUID, results []MatchPointsInput) ([]scoring.PointEntry, error) {
	if err := s.ValidateMatchPoints(ctx, eventID, results); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entries := make([]scoring.PointEntry, len(results))
	members := make(map[uuid.UUID][]uuid.UUID)
	for i, r := range results {
		entries[i] = s.newEntry(eventID, scoring.CategoryMatch, r.Outcome, r.Participant, r.Points, &matchID, now)
		if len(r.Members) > 0 {
			members[entries[i].ID] = r.Members
		}
	}

	return entries, s.writeEntries(ctx, entries, members)
}

// RecordTournamentPlacements writes one entry per finishing position,
// category tournament.
func (s *PointService) RecordTournamentPlacements(ctx context.Context, eventID, tournamentID uuid.UUID, placements []PlacementInput) ([]scoring.PointEntry, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if len(placements) == 0 {
		return nil, fmt.Errorf("%w: no placements given", scoring.ErrInvalidInput)
	}
	for _, p := range placements {
		if p.Place < 1 {
			return nil, fmt.Errorf("%w: placement must be 1 or higher", scoring.ErrInvalidInput)
		}
		if err := scoring.ValidatePoints(scoring.CategoryTournament, scoring.OutcomePlacement, p.Points); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	entries := make([]scoring.PointEntry, len(placements))
	members := make(map[uuid.UUID][]uuid.UUID)
	for i, p := range placements {
		entries[i] = s.newEntry(eventID, scoring.CategoryTournament, scoring.OutcomePlacement, p.Participant, p.Points, &tournamentID, now)
		if len(p.Members) > 0 {
			members[entries[i].ID] = p.Members
		}
	}

	return entries, s.writeEntries(ctx, entries, members)
}

// RecordDiscretionaryAward writes a single discretionary entry. Negative
// points are a penalty, non-negative an award.
func (s *PointService) RecordDiscretionaryAward(ctx context.Context, eventID uuid.UUID, p scoring.Participant, points int, reason string) (*scoring.PointEntry, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	outcome := scoring.OutcomeAward
	if points < 0 {
		outcome = scoring.OutcomePenalty
	}
	if err := scoring.ValidatePoints(scoring.CategoryDiscretionary, outcome, points); err != nil {
		return nil, err
	}

	entry := s.newEntry(eventID, scoring.CategoryDiscretionary, outcome, p, points, nil, time.Now().UTC())
	entry.Reason = utils.StringOrNil(reason)

	if err := s.writeEntries(ctx, []scoring.PointEntry{entry}, nil); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReverseMatchPoints appends counter-entries negating every match entry the
// given match produced, keeping the scoresheet append-only.
func (s *PointService) ReverseMatchPoints(ctx context.Context, eventID, matchID uuid.UUID) ([]scoring.PointEntry, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	existing, err := s.points.ListEntriesBySource(ctx, eventID, matchID, scoring.CategoryMatch)
	if err != nil {
		return nil, fmt.Errorf("failed to load match entries: %w", err)
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("%w: match %s has no point entries", scoring.ErrNotFound, matchID)
	}

	now := time.Now().UTC()
	entries := make([]scoring.PointEntry, 0, len(existing))
	for _, orig := range existing {
		if orig.Outcome == scoring.OutcomeCorrection {
			return nil, fmt.Errorf("%w: match %s already reversed", scoring.ErrAlreadyApplied, matchID)
		}
		entry := s.newEntry(eventID, scoring.CategoryMatch, scoring.OutcomeCorrection, orig.Participant(), -orig.Points, &matchID, now)
		entry.TeamID = orig.TeamID
		entries = append(entries, entry)
	}

	return entries, s.writeEntries(ctx, entries, nil)
}

// Aggregate folds every matching entry into a total per participant key.
// The fold is a commutative sum, so the result is independent of entry
// order and identical for identical input sets.
func (s *PointService) Aggregate(ctx context.Context, eventID uuid.UUID, filter store.EntryFilter) (map[string]*Totals, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	entries, err := s.points.ListEntries(ctx, eventID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list point entries: %w", err)
	}

	totals := make(map[string]*Totals)
	for _, e := range entries {
		fold(totals, e.Participant(), e)
	}
	return totals, nil
}

// AggregateContributions is the second, independent view over the same
// entries: team-attributed points are credited to each contributing user
// instead of the team. The two views are never mixed into one total.
func (s *PointService) AggregateContributions(ctx context.Context, eventID uuid.UUID, filter store.EntryFilter) (map[string]*Totals, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	entries, err := s.points.ListEntries(ctx, eventID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list point entries: %w", err)
	}
	members, err := s.points.ListMembers(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry members: %w", err)
	}

	totals := make(map[string]*Totals)
	for _, e := range entries {
		if e.ParticipantType == scoring.ParticipantTeam {
			for _, userID := range members[e.ID] {
				fold(totals, scoring.Participant{ID: userID, Type: scoring.ParticipantUser}, e)
			}
			continue
		}
		fold(totals, e.Participant(), e)
	}
	return totals, nil
}

func fold(totals map[string]*Totals, p scoring.Participant, e scoring.PointEntry) {
	key := p.Key()
	t, ok := totals[key]
	if !ok {
		t = &Totals{Participant: p, FirstEntryAt: e.CreatedAt}
		totals[key] = t
	}
	t.Points += e.Points
	if e.Outcome == scoring.OutcomeWin {
		t.Wins++
	}
	if e.CreatedAt.Before(t.FirstEntryAt) {
		t.FirstEntryAt = e.CreatedAt
	}
}

func (s *PointService) newEntry(eventID uuid.UUID, category scoring.PointCategory, outcome scoring.Outcome, p scoring.Participant, points int, sourceRef *uuid.UUID, at time.Time) scoring.PointEntry {
	entry := scoring.PointEntry{
		ID:              uuid.New(),
		EventID:         eventID,
		Category:        category,
		Outcome:         outcome,
		ParticipantID:   p.ID,
		ParticipantType: p.Type,
		Points:          points,
		SourceRef:       sourceRef,
		CreatedAt:       at,
	}
	if p.Type == scoring.ParticipantTeam {
		entry.TeamID = utils.Ptr(p.ID)
	}
	return entry
}

func (s *PointService) writeEntries(ctx context.Context, entries []scoring.PointEntry, members map[uuid.UUID][]uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.points.CreateEntries(ctx, tx, entries); err != nil {
		return fmt.Errorf("failed to create point entries: %w", err)
	}
	for entryID, userIDs := range members {
		if err := s.points.CreateEntryMembers(ctx, tx, entryID, userIDs); err != nil {
			return fmt.Errorf("failed to record entry members: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PointService) requireEvent(ctx context.Context, eventID uuid.UUID) error {
	_, err := s.leagues.GetEvent(ctx, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: event %s", scoring.ErrNotFound, eventID)
	}
	return err
}
