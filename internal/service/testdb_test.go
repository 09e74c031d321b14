package service

import (
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// One connection, or the pool hands out fresh empty memory databases.
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type fixtures struct {
	OwnerID    uuid.UUID
	LeagueID   uuid.UUID
	EventID    uuid.UUID
	GameTypeID uuid.UUID
}

func seedFixtures(t *testing.T, db *sqlx.DB) fixtures {
	t.Helper()
	f := fixtures{
		OwnerID:    uuid.New(),
		LeagueID:   uuid.New(),
		EventID:    uuid.New(),
		GameTypeID: uuid.New(),
	}
	db.MustExec("INSERT INTO users (id, email, username) VALUES (?, ?, ?)", f.OwnerID, "owner@clubladder.local", "owner")
	db.MustExec("INSERT INTO leagues (id, owner_id, name) VALUES (?, ?, ?)", f.LeagueID, f.OwnerID, "Office League")
	db.MustExec("INSERT INTO events (id, league_id, name) VALUES (?, ?, ?)", f.EventID, f.LeagueID, "Season 1")
	db.MustExec("INSERT INTO game_types (id, league_id, name) VALUES (?, ?, ?)", f.GameTypeID, f.LeagueID, "Ping Pong 1v1")
	return f
}

func seedUser(t *testing.T, db *sqlx.DB, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	db.MustExec("INSERT INTO users (id, email, username) VALUES (?, ?, ?)", id, name+"@clubladder.local", name)
	return id
}

func seedTeam(t *testing.T, db *sqlx.DB, f fixtures, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	db.MustExec("INSERT INTO teams (id, league_id, name) VALUES (?, ?, ?)", id, f.LeagueID, name)
	return id
}
