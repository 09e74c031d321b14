package service

import (
	"context"
	"fmt"

	"clubladder/internal/scoring"
	"clubladder/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// HistoryService is the read side of the scoresheet: it re-derives a
// chronological activity log from the same point entries the aggregator
// folds, enriched with display data. Pure read, never mutates.
type HistoryService struct {
	db      *sqlx.DB
	points  *store.PointStore
	leagues *store.LeagueStore
	ratings *store.RatingStore
}

func NewHistoryService(db *sqlx.DB, points *store.PointStore, leagues *store.LeagueStore, ratings *store.RatingStore) *HistoryService {
	return &HistoryService{db: db, points: points, leagues: leagues, ratings: ratings}
}

// ScoringHistoryItem is one point entry prepared for display. SourceLink is
// nil when the entry's source no longer resolves (a soft-deleted match);
// the entry itself still surfaces.
type ScoringHistoryItem struct {
	Entry       scoring.PointEntry `json:"entry"`
	DisplayName string             `json:"display_name"`
	SourceLink  *uuid.UUID         `json:"source_link,omitempty"`
}

// Project returns one page of the event's scoring log, newest first.
// Stateless offset/limit paging, restartable from any offset.
func (s *HistoryService) Project(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]ScoringHistoryItem, error) {
	if _, err := s.leagues.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("%w: event %s", scoring.ErrNotFound, eventID)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.points.ListEntriesPage(ctx, eventID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list point entries: %w", err)
	}

	participants := make([]scoring.Participant, 0, len(entries))
	for _, e := range entries {
		participants = append(participants, e.Participant())
	}
	names, err := s.leagues.DisplayNames(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve display names: %w", err)
	}

	items := make([]ScoringHistoryItem, len(entries))
	for i, e := range entries {
		name, ok := names[e.Participant().Key()]
		if !ok {
			name = "Unknown"
		}
		items[i] = ScoringHistoryItem{
			Entry:       e,
			DisplayName: name,
			SourceLink:  s.resolveSource(ctx, e),
		}
	}
	return items, nil
}

// resolveSource decides whether the entry's source ref is still linkable.
// Match refs are checked against the rating ledger; everything else links
// as recorded. Lookup failures degrade to no link rather than failing the
// page.
func (s *HistoryService) resolveSource(ctx context.Context, e scoring.PointEntry) *uuid.UUID {
	if e.SourceRef == nil {
		return nil
	}
	if e.Category != scoring.CategoryMatch {
		return e.SourceRef
	}
	ok, err := s.ratings.MatchHasHistory(ctx, *e.SourceRef)
	if err != nil || !ok {
		return nil
	}
	return e.SourceRef
}
