package store

import (
	"context"

	"clubladder/internal/scoring"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RatingStore struct {
	db *sqlx.DB
}

const (
	getRatingRecordQuery = `
        SELECT * FROM rating_records
        WHERE participant_id = ? AND participant_type = ? AND game_type_id = ?
    `
	insertRatingRecordQuery = `
        INSERT INTO rating_records (id, participant_id, participant_type, game_type_id,
            current_rating, games_played, is_provisional, version, created_at, updated_at)
        VALUES (:id, :participant_id, :participant_type, :game_type_id,
            :current_rating, :games_played, :is_provisional, :version, :created_at, :updated_at)
    `
	// The WHERE clause on version is the optimistic concurrency check: a
	// stale writer matches zero rows and the caller maps that to a conflict.
	updateRatingRecordQuery = `
        UPDATE rating_records SET
            current_rating = ?,
            games_played = ?,
            is_provisional = ?,
            version = version + 1,
            updated_at = ?
        WHERE id = ? AND version = ?
    `
	insertHistoryQuery = `
        INSERT INTO rating_history (id, participant_id, participant_type, game_type_id,
            match_id, rating_before, rating_after, delta, is_reversal, occurred_at)
        VALUES (:id, :participant_id, :participant_type, :game_type_id,
            :match_id, :rating_before, :rating_after, :delta, :is_reversal, :occurred_at)
    `
	listHistoryQuery = `
        SELECT * FROM rating_history
        WHERE participant_id = ? AND participant_type = ? AND game_type_id = ?
        ORDER BY occurred_at DESC, id DESC
        LIMIT ? OFFSET ?
    `
	listHistoryForMatchQuery = `
        SELECT * FROM rating_history
        WHERE match_id = ? AND is_reversal = ?
    `
	countHistoryForMatchQuery = `
        SELECT COUNT(*) FROM rating_history WHERE match_id = ? AND is_reversal = ?
    `
)

func NewRatingStore(db *sqlx.DB) *RatingStore {
	return &RatingStore{db: db}
}

func (s *RatingStore) GetRecord(ctx context.Context, p scoring.Participant, gameTypeID uuid.UUID) (*scoring.RatingRecord, error) {
	var record scoring.RatingRecord
	err := s.db.GetContext(ctx, &record, getRatingRecordQuery, p.ID, p.Type, gameTypeID)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RatingStore) GetRecordTx(ctx context.Context, tx *sqlx.Tx, p scoring.Participant, gameTypeID uuid.UUID) (*scoring.RatingRecord, error) {
	var record scoring.RatingRecord
	err := tx.GetContext(ctx, &record, getRatingRecordQuery, p.ID, p.Type, gameTypeID)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RatingStore) CreateRecord(ctx context.Context, tx *sqlx.Tx, record *scoring.RatingRecord) error {
	_, err := tx.NamedExecContext(ctx, insertRatingRecordQuery, record)
	return err
}

// UpdateRecord writes the new rating state guarded by the expected version.
// Returns the number of rows matched; zero means a concurrent writer won.
func (s *RatingStore) UpdateRecord(ctx context.Context, tx *sqlx.Tx, record *scoring.RatingRecord, expectedVersion int) (int64, error) {
	res, err := tx.ExecContext(ctx, updateRatingRecordQuery,
		record.CurrentRating, record.GamesPlayed, record.IsProvisional, record.UpdatedAt,
		record.ID, expectedVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *RatingStore) CreateHistoryEntries(ctx context.Context, tx *sqlx.Tx, entries []scoring.RatingHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertHistoryQuery, entries)
	return err
}

func (s *RatingStore) ListHistory(ctx context.Context, p scoring.Participant, gameTypeID uuid.UUID, limit, offset int) ([]scoring.RatingHistoryEntry, error) {
	var entries []scoring.RatingHistoryEntry
	err := s.db.SelectContext(ctx, &entries, listHistoryQuery, p.ID, p.Type, gameTypeID, limit, offset)
	return entries, err
}

func (s *RatingStore) ListHistoryForMatch(ctx context.Context, matchID uuid.UUID, reversal bool) ([]scoring.RatingHistoryEntry, error) {
	var entries []scoring.RatingHistoryEntry
	err := s.db.SelectContext(ctx, &entries, listHistoryForMatchQuery, matchID, reversal)
	return entries, err
}

func (s *RatingStore) CountHistoryForMatch(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, reversal bool) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, countHistoryForMatchQuery, matchID, reversal)
	return count, err
}

// MatchHasHistory reports whether a match id is still resolvable in the
// ledger, used by the scoring history projector to decide link-ability.
func (s *RatingStore) MatchHasHistory(ctx context.Context, matchID uuid.UUID) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, countHistoryForMatchQuery, matchID, false)
	return count > 0, err
}
