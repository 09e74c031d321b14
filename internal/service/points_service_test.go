package service

import (
	"context"
	"testing"
	"time"

	"clubladder/internal/rating"
	"clubladder/internal/scoring"
	"clubladder/internal/store"
	"clubladder/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPointService(db *sqlx.DB) *PointService {
	return NewPointService(db, store.NewPointStore(db), store.NewLeagueStore(db))
}

func TestRecordMatchPoints_AndAggregate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p1 := participant(scoring.ParticipantUser)
	p2 := participant(scoring.ParticipantUser)

	_, err := svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: p1, Outcome: scoring.OutcomeWin, Points: 3},
		{Participant: p2, Outcome: scoring.OutcomeLoss, Points: 0},
	})
	require.NoError(t, err)

	_, err = svc.RecordDiscretionaryAward(ctx, f.EventID, p1, 1, "spirit of the game")
	require.NoError(t, err)

	_, err = svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: p2, Outcome: scoring.OutcomeWin, Points: 5},
		{Participant: p1, Outcome: scoring.OutcomeLoss, Points: 0},
	})
	require.NoError(t, err)

	totals, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, 4, totals[p1.Key()].Points)
	assert.Equal(t, 1, totals[p1.Key()].Wins)
	assert.Equal(t, 5, totals[p2.Key()].Points)
	assert.Equal(t, 1, totals[p2.Key()].Wins)

	// Ranked, P2's 5 beats P1's 4.
	board := BuildLeaderboard(totals)
	require.Len(t, board, 2)
	assert.Equal(t, p2, board[0].Participant)
	assert.Equal(t, 5, board[0].TotalPoints)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, p1, board[1].Participant)
	assert.Equal(t, 4, board[1].TotalPoints)
	assert.Equal(t, 2, board[1].Rank)
}

func TestAggregate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p := participant(scoring.ParticipantUser)
	_, err := svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: p, Outcome: scoring.OutcomeWin, Points: 3},
		{Participant: participant(scoring.ParticipantUser), Outcome: scoring.OutcomeLoss, Points: 1},
	})
	require.NoError(t, err)

	first, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	second, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecordMatchPoints_Validation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p := participant(scoring.ParticipantUser)

	// A win may not be worth negative points.
	_, err := svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: p, Outcome: scoring.OutcomeWin, Points: -3},
	})
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)

	// Placement is not a match outcome.
	_, err = svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: p, Outcome: scoring.OutcomePlacement, Points: 3},
	})
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)

	// Unknown events fail before anything is written.
	_, err = svc.RecordMatchPoints(ctx, uuid.New(), uuid.New(), []MatchPointsInput{
		{Participant: p, Outcome: scoring.OutcomeWin, Points: 3},
	})
	assert.ErrorIs(t, err, scoring.ErrNotFound)

	totals, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestTournamentPlacements(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p1 := participant(scoring.ParticipantUser)
	p2 := participant(scoring.ParticipantUser)
	tournamentID := uuid.New()

	entries, err := svc.RecordTournamentPlacements(ctx, f.EventID, tournamentID, []PlacementInput{
		{Participant: p1, Place: 1, Points: 10},
		{Participant: p2, Place: 2, Points: 6},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, scoring.CategoryTournament, entries[0].Category)
	require.NotNil(t, entries[0].SourceRef)
	assert.Equal(t, tournamentID, *entries[0].SourceRef)

	_, err = svc.RecordTournamentPlacements(ctx, f.EventID, tournamentID, []PlacementInput{
		{Participant: p1, Place: 0, Points: 10},
	})
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)
}

func TestDiscretionaryAward_PenaltyAndReason(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p := participant(scoring.ParticipantUser)

	award, err := svc.RecordDiscretionaryAward(ctx, f.EventID, p, 2, "organized the venue")
	require.NoError(t, err)
	assert.Equal(t, scoring.OutcomeAward, award.Outcome)
	require.NotNil(t, award.Reason)
	assert.Equal(t, "organized the venue", *award.Reason)

	penalty, err := svc.RecordDiscretionaryAward(ctx, f.EventID, p, -2, "no-show")
	require.NoError(t, err)
	assert.Equal(t, scoring.OutcomePenalty, penalty.Outcome)

	totals, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, totals[p.Key()].Points)
}

func TestTeamAttribution(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	teamID := seedTeam(t, db, f, "The Paddles")
	u1 := seedUser(t, db, "ada")
	u2 := seedUser(t, db, "grace")
	team := scoring.Participant{ID: teamID, Type: scoring.ParticipantTeam}
	solo := participant(scoring.ParticipantUser)

	_, err := svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: team, Outcome: scoring.OutcomeWin, Points: 3, Members: []uuid.UUID{u1, u2}},
		{Participant: solo, Outcome: scoring.OutcomeLoss, Points: 1},
	})
	require.NoError(t, err)

	// Team view: points accrue to the team key once.
	totals, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, 3, totals[team.Key()].Points)
	assert.Equal(t, 1, totals[solo.Key()].Points)

	// Contribution view: the same entry credits each member instead,
	// never both views in one total.
	contribs, err := svc.AggregateContributions(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, contribs, 3)
	u1Key := scoring.Participant{ID: u1, Type: scoring.ParticipantUser}.Key()
	u2Key := scoring.Participant{ID: u2, Type: scoring.ParticipantUser}.Key()
	assert.Equal(t, 3, contribs[u1Key].Points)
	assert.Equal(t, 3, contribs[u2Key].Points)
	assert.Equal(t, 1, contribs[solo.Key()].Points)
	assert.NotContains(t, contribs, team.Key())
}

func TestAggregate_Filters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p := participant(scoring.ParticipantUser)
	before := time.Now().UTC().Add(-time.Minute)

	_, err := svc.RecordMatchPoints(ctx, f.EventID, uuid.New(), []MatchPointsInput{
		{Participant: p, Outcome: scoring.OutcomeWin, Points: 3},
		{Participant: participant(scoring.ParticipantUser), Outcome: scoring.OutcomeLoss, Points: 0},
	})
	require.NoError(t, err)
	_, err = svc.RecordDiscretionaryAward(ctx, f.EventID, p, 1, "")
	require.NoError(t, err)

	matchOnly, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{
		Categories: []scoring.PointCategory{scoring.CategoryMatch},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, matchOnly[p.Key()].Points)

	none, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{To: utils.Ptr(before)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMatchSubmission_PointsValidatedFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	points := newPointService(db)
	ratings := NewRatingService(db, store.NewRatingStore(db), rating.DefaultConfig())
	ctx := context.Background()

	p1 := participant(scoring.ParticipantUser)
	p2 := participant(scoring.ParticipantUser)
	matchID := uuid.New()
	sides := []MatchSide{
		{Participant: p1, Rank: 1},
		{Participant: p2, Rank: 2},
	}
	input := []MatchPointsInput{
		{Participant: p1, Outcome: scoring.OutcomeWin, Points: 3},
		{Participant: p2, Outcome: scoring.OutcomeLoss, Points: 0},
	}

	// A submission against an unknown event fails up front, before the
	// rating ledger would have moved. The match is not wedged: the corrected
	// resubmission settles both sides.
	err := points.ValidateMatchPoints(ctx, uuid.New(), input)
	assert.ErrorIs(t, err, scoring.ErrNotFound)

	err = points.ValidateMatchPoints(ctx, f.EventID, []MatchPointsInput{
		{Participant: p1, Outcome: scoring.OutcomePlacement, Points: 3},
	})
	assert.ErrorIs(t, err, scoring.ErrInvalidInput)

	history, err := ratings.RatingHistory(ctx, p1, f.GameTypeID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, points.ValidateMatchPoints(ctx, f.EventID, input))
	_, err = ratings.ApplyMatchResult(ctx, matchID, f.GameTypeID, sides)
	require.NoError(t, err)
	_, err = points.RecordMatchPoints(ctx, f.EventID, matchID, input)
	require.NoError(t, err)

	totals, err := points.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, totals[p1.Key()].Points)

	record, err := ratings.CurrentRating(ctx, p1, f.GameTypeID)
	require.NoError(t, err)
	assert.Equal(t, 1016, record.CurrentRating)
}

func TestReverseMatchPoints(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	svc := newPointService(db)
	ctx := context.Background()

	p1 := participant(scoring.ParticipantUser)
	p2 := participant(scoring.ParticipantUser)
	matchID := uuid.New()

	_, err := svc.RecordMatchPoints(ctx, f.EventID, matchID, []MatchPointsInput{
		{Participant: p1, Outcome: scoring.OutcomeWin, Points: 3},
		{Participant: p2, Outcome: scoring.OutcomeLoss, Points: 1},
	})
	require.NoError(t, err)

	counters, err := svc.ReverseMatchPoints(ctx, f.EventID, matchID)
	require.NoError(t, err)
	require.Len(t, counters, 2)
	assert.Equal(t, scoring.OutcomeCorrection, counters[0].Outcome)

	// The scoresheet nets to zero but keeps all four rows.
	totals, err := svc.Aggregate(ctx, f.EventID, store.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, totals[p1.Key()].Points)
	assert.Equal(t, 0, totals[p2.Key()].Points)

	_, err = svc.ReverseMatchPoints(ctx, f.EventID, matchID)
	assert.ErrorIs(t, err, scoring.ErrAlreadyApplied)

	_, err = svc.ReverseMatchPoints(ctx, f.EventID, uuid.New())
	assert.ErrorIs(t, err, scoring.ErrNotFound)
}
