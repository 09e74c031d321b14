package store

import (
	"context"
	"testing"
	"time"

	"clubladder/internal/league"
	"clubladder/internal/scoring"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeagueEventGameTypeRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	store := NewLeagueStore(db)
	ctx := context.Background()

	fetched, err := store.GetLeague(ctx, f.LeagueID)
	require.NoError(t, err)
	assert.Equal(t, "Office League", fetched.Name)

	event, err := store.GetEvent(ctx, f.EventID)
	require.NoError(t, err)
	assert.Equal(t, f.LeagueID, event.LeagueID)

	gt, err := store.GetGameType(ctx, f.GameTypeID)
	require.NoError(t, err)
	assert.Equal(t, "Ping Pong 1v1", gt.Name)

	second := &league.Event{ID: uuid.New(), LeagueID: f.LeagueID, Name: "Season 2", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateEvent(ctx, second))

	events, err := store.ListEvents(ctx, f.LeagueID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestDisplayNames_MixedVariants(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	store := NewLeagueStore(db)
	ctx := context.Background()

	userID := uuid.New()
	db.MustExec("INSERT INTO users (id, email, username) VALUES (?, ?, ?)", userID, "ada@clubladder.local", "ada")

	team := &league.Team{ID: uuid.New(), LeagueID: f.LeagueID, Name: "The Paddles", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTeam(ctx, team))

	ghost := &league.PlaceholderMember{ID: uuid.New(), LeagueID: f.LeagueID, Name: "New Hire", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreatePlaceholderMember(ctx, ghost))

	participants := []scoring.Participant{
		{ID: userID, Type: scoring.ParticipantUser},
		{ID: team.ID, Type: scoring.ParticipantTeam},
		{ID: ghost.ID, Type: scoring.ParticipantPlaceholder},
		{ID: uuid.New(), Type: scoring.ParticipantUser}, // no backing row
	}

	names, err := store.DisplayNames(ctx, participants)
	require.NoError(t, err)
	assert.Equal(t, "ada", names[participants[0].Key()])
	assert.Equal(t, "The Paddles", names[participants[1].Key()])
	assert.Equal(t, "New Hire", names[participants[2].Key()])
	_, ok := names[participants[3].Key()]
	assert.False(t, ok, "unknown participants are simply absent")
}

func TestTeamMembers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	f := seedFixtures(t, db)
	store := NewLeagueStore(db)
	ctx := context.Background()

	team := &league.Team{ID: uuid.New(), LeagueID: f.LeagueID, Name: "Doubles", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTeam(ctx, team))

	u1, u2 := uuid.New(), uuid.New()
	db.MustExec("INSERT INTO users (id, email, username) VALUES (?, ?, ?)", u1, "x@clubladder.local", "x")
	db.MustExec("INSERT INTO users (id, email, username) VALUES (?, ?, ?)", u2, "y@clubladder.local", "y")

	require.NoError(t, store.AddTeamMembers(ctx, team.ID, []uuid.UUID{u1, u2}))

	members, err := store.ListTeamMembers(ctx, team.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, members)
}
