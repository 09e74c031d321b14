package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clubladder/internal/rating"
	"clubladder/internal/scoring"
	"clubladder/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// RatingService is the rating ledger: it turns finalized match results into
// rating record updates plus append-only history, atomically per match.
type RatingService struct {
	db    *sqlx.DB
	store *store.RatingStore
	cfg   rating.Config
}

func NewRatingService(db *sqlx.DB, store *store.RatingStore, cfg rating.Config) *RatingService {
	return &RatingService{db: db, store: store, cfg: cfg}
}

// MatchSide is one side of a finalized match. Rank is the finishing
// position (1 is best); equal ranks are a draw between those sides. A
// head-to-head win is ranks 1 and 2.
type MatchSide struct {
	Participant scoring.Participant
	Rank        int
}

// ApplyMatchResult settles one match against the ledger. All participants
// update or none do: any load failure or version conflict rolls the whole
// transaction back, so a partially rated match can never be observed.
//
// Resubmitting a match that is already in the ledger returns
// scoring.ErrAlreadyApplied; a concurrent settle touching the same rating
// record returns scoring.ErrConflict and the caller retries the whole call.
func (s *RatingService) ApplyMatchResult(ctx context.Context, matchID, gameTypeID uuid.UUID, sides []MatchSide) ([]scoring.RatingHistoryEntry, error) {
	if err := validateSides(sides); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	applied, err := s.store.CountHistoryForMatch(ctx, tx, matchID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to check ledger for match: %w", err)
	}
	if applied > 0 {
		return nil, fmt.Errorf("%w: match %s", scoring.ErrAlreadyApplied, matchID)
	}

	records := make([]*scoring.RatingRecord, len(sides))
	fresh := make([]bool, len(sides))
	standings := make([]rating.Standing, len(sides))
	for i, side := range sides {
		record, err := s.store.GetRecordTx(ctx, tx, side.Participant, gameTypeID)
		if errors.Is(err, sql.ErrNoRows) {
			record = s.defaultRecord(side.Participant, gameTypeID)
			fresh[i] = true
		} else if err != nil {
			return nil, fmt.Errorf("failed to load rating record: %w", err)
		}
		records[i] = record
		standings[i] = rating.Standing{
			Rating: record.CurrentRating,
			K:      s.cfg.KFor(record.IsProvisional),
			Rank:   side.Rank,
		}
	}

	deltas := rating.PairwiseDeltas(standings)
	now := time.Now().UTC()

	entries := make([]scoring.RatingHistoryEntry, len(sides))
	for i, record := range records {
		before := record.CurrentRating
		after := before + deltas[i]
		if after < s.cfg.RatingFloor {
			after = s.cfg.RatingFloor
		}

		record.CurrentRating = after
		record.GamesPlayed++
		record.IsProvisional = record.GamesPlayed < s.cfg.ProvisionalThreshold
		record.UpdatedAt = now

		if fresh[i] {
			record.CreatedAt = now
			if err := s.store.CreateRecord(ctx, tx, record); err != nil {
				// Two first matches for the same participant race to insert;
				// the loser hits the unique index and the whole call is
				// retryable.
				if isConstraintViolation(err) {
					return nil, fmt.Errorf("%w: rating record for %s", scoring.ErrConflict, record.Participant().Key())
				}
				return nil, fmt.Errorf("failed to create rating record: %w", err)
			}
		} else {
			affected, err := s.store.UpdateRecord(ctx, tx, record, record.Version)
			if err != nil {
				return nil, fmt.Errorf("failed to update rating record: %w", err)
			}
			if affected == 0 {
				return nil, fmt.Errorf("%w: rating record %s", scoring.ErrConflict, record.ID)
			}
		}

		// Delta stays unclamped on purpose; RatingAfter is what was applied.
		entries[i] = scoring.RatingHistoryEntry{
			ID:              uuid.New(),
			ParticipantID:   record.ParticipantID,
			ParticipantType: record.ParticipantType,
			GameTypeID:      gameTypeID,
			MatchID:         matchID,
			RatingBefore:    before,
			RatingAfter:     after,
			Delta:           deltas[i],
			OccurredAt:      now,
		}
	}

	if err := s.store.CreateHistoryEntries(ctx, tx, entries); err != nil {
		return nil, fmt.Errorf("failed to append rating history: %w", err)
	}

	return entries, tx.Commit()
}

// ReverseMatchResult compensates an already-settled match after a dispute.
// History is never rewritten: each side gets a second entry negating the
// rating change the original actually applied. Games played and the
// provisional flag are left alone, so the provisional transition stays
// irreversible.
func (s *RatingService) ReverseMatchResult(ctx context.Context, matchID uuid.UUID) ([]scoring.RatingHistoryEntry, error) {
	originals, err := s.store.ListHistoryForMatch(ctx, matchID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load match history: %w", err)
	}
	if len(originals) == 0 {
		return nil, fmt.Errorf("%w: match %s has no ledger entries", scoring.ErrNotFound, matchID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reversed, err := s.store.CountHistoryForMatch(ctx, tx, matchID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to check for prior reversal: %w", err)
	}
	if reversed > 0 {
		return nil, fmt.Errorf("%w: match %s already reversed", scoring.ErrAlreadyApplied, matchID)
	}

	now := time.Now().UTC()
	entries := make([]scoring.RatingHistoryEntry, len(originals))
	for i, orig := range originals {
		participant := scoring.Participant{ID: orig.ParticipantID, Type: orig.ParticipantType}
		record, err := s.store.GetRecordTx(ctx, tx, participant, orig.GameTypeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rating record: %w", err)
		}

		// Compensate what was actually applied, not the unclamped delta:
		// a loss clamped at the floor must not come back larger than it
		// went out.
		applied := orig.RatingAfter - orig.RatingBefore
		before := record.CurrentRating
		after := before - applied
		if after < s.cfg.RatingFloor {
			after = s.cfg.RatingFloor
		}
		record.CurrentRating = after
		record.UpdatedAt = now

		affected, err := s.store.UpdateRecord(ctx, tx, record, record.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to update rating record: %w", err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("%w: rating record %s", scoring.ErrConflict, record.ID)
		}

		entries[i] = scoring.RatingHistoryEntry{
			ID:              uuid.New(),
			ParticipantID:   orig.ParticipantID,
			ParticipantType: orig.ParticipantType,
			GameTypeID:      orig.GameTypeID,
			MatchID:         matchID,
			RatingBefore:    before,
			RatingAfter:     after,
			Delta:           -applied,
			IsReversal:      true,
			OccurredAt:      now,
		}
	}

	if err := s.store.CreateHistoryEntries(ctx, tx, entries); err != nil {
		return nil, fmt.Errorf("failed to append compensating history: %w", err)
	}

	return entries, tx.Commit()
}

// CurrentRating returns the stored record, or an unsaved default at the
// configured initial rating for a participant that has never played.
func (s *RatingService) CurrentRating(ctx context.Context, p scoring.Participant, gameTypeID uuid.UUID) (*scoring.RatingRecord, error) {
	record, err := s.store.GetRecord(ctx, p, gameTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultRecord(p, gameTypeID), nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *RatingService) RatingHistory(ctx context.Context, p scoring.Participant, gameTypeID uuid.UUID, limit, offset int) ([]scoring.RatingHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListHistory(ctx, p, gameTypeID, limit, offset)
}

func (s *RatingService) defaultRecord(p scoring.Participant, gameTypeID uuid.UUID) *scoring.RatingRecord {
	return &scoring.RatingRecord{
		ID:              uuid.New(),
		ParticipantID:   p.ID,
		ParticipantType: p.Type,
		GameTypeID:      gameTypeID,
		CurrentRating:   s.cfg.InitialRating,
		GamesPlayed:     0,
		IsProvisional:   0 < s.cfg.ProvisionalThreshold,
	}
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func validateSides(sides []MatchSide) error {
	if len(sides) < 2 {
		return fmt.Errorf("%w: a match needs at least two sides", scoring.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(sides))
	for _, side := range sides {
		if !side.Participant.Type.Valid() {
			return fmt.Errorf("%w: unknown participant type %q", scoring.ErrInvalidInput, side.Participant.Type)
		}
		if side.Participant.ID == uuid.Nil {
			return fmt.Errorf("%w: missing participant id", scoring.ErrInvalidInput)
		}
		if side.Rank < 1 {
			return fmt.Errorf("%w: rank must be 1 or higher", scoring.ErrInvalidInput)
		}
		key := side.Participant.Key()
		if seen[key] {
			return fmt.Errorf("%w: participant %s listed twice", scoring.ErrInvalidInput, key)
		}
		seen[key] = true
	}
	return nil
}
