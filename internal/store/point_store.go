package store

import (
	"context"
	"strings"
	"time"

	"clubladder/internal/scoring"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PointStore struct {
	db *sqlx.DB
}

// EntryFilter narrows an event scan by category and creation window.
// Zero value means no filtering.
type EntryFilter struct {
	Categories []scoring.PointCategory
	From       *time.Time
	To         *time.Time
}

const (
	insertPointEntryQuery = `
        INSERT INTO point_entries (id, event_id, category, outcome, participant_id,
            participant_type, team_id, points, reason, source_ref, created_at)
        VALUES (:id, :event_id, :category, :outcome, :participant_id,
            :participant_type, :team_id, :points, :reason, :source_ref, :created_at)
    `
	insertEntryMemberQuery = `
        INSERT INTO point_entry_members (entry_id, user_id, position)
        VALUES (:entry_id, :user_id, :position)
    `
	listEntriesPageQuery = `
        SELECT * FROM point_entries
        WHERE event_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?
    `
	listEntriesBySourceQuery = `
        SELECT * FROM point_entries WHERE event_id = ? AND source_ref = ? AND category = ?
    `
)

type entryMemberRow struct {
	EntryID  uuid.UUID `db:"entry_id"`
	UserID   uuid.UUID `db:"user_id"`
	Position int       `db:"position"`
}

func NewPointStore(db *sqlx.DB) *PointStore {
	return &PointStore{db: db}
}

func (s *PointStore) CreateEntries(ctx context.Context, tx *sqlx.Tx, entries []scoring.PointEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertPointEntryQuery, entries)
	return err
}

// CreateEntryMembers records the ordered contributing roster of a
// team-attributed entry.
func (s *PointStore) CreateEntryMembers(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]entryMemberRow, 0, len(userIDs))
	for i, id := range userIDs {
		rows = append(rows, entryMemberRow{EntryID: entryID, UserID: id, Position: i + 1})
	}
	_, err := tx.NamedExecContext(ctx, insertEntryMemberQuery, rows)
	return err
}

// ListEntries returns every entry of an event matching the filter, in
// creation order. Aggregation folds these with a commutative sum, so the
// order here only matters for reproducibility of tests.
func (s *PointStore) ListEntries(ctx context.Context, eventID uuid.UUID, filter EntryFilter) ([]scoring.PointEntry, error) {
	query := "SELECT * FROM point_entries WHERE event_id = ?"
	args := []interface{}{eventID}

	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			placeholders[i] = "?"
			args = append(args, c)
		}
		query += " AND category IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if filter.From != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND created_at < ?"
		args = append(args, *filter.To)
	}
	query += " ORDER BY created_at ASC, id ASC"

	var entries []scoring.PointEntry
	err := s.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (s *PointStore) ListEntriesPage(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]scoring.PointEntry, error) {
	var entries []scoring.PointEntry
	err := s.db.SelectContext(ctx, &entries, listEntriesPageQuery, eventID, limit, offset)
	return entries, err
}

func (s *PointStore) ListEntriesBySource(ctx context.Context, eventID, sourceRef uuid.UUID, category scoring.PointCategory) ([]scoring.PointEntry, error) {
	var entries []scoring.PointEntry
	err := s.db.SelectContext(ctx, &entries, listEntriesBySourceQuery, eventID, sourceRef, category)
	return entries, err
}

// ListMembers returns the contributing user ids per entry for a whole event,
// for the contribution aggregation view.
func (s *PointStore) ListMembers(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	var rows []entryMemberRow
	err := s.db.SelectContext(ctx, &rows, `
        SELECT m.entry_id, m.user_id, m.position FROM point_entry_members m
        JOIN point_entries e ON e.id = m.entry_id
        WHERE e.event_id = ?
        ORDER BY m.entry_id, m.position`, eventID)
	if err != nil {
		return nil, err
	}
	members := make(map[uuid.UUID][]uuid.UUID)
	for _, r := range rows {
		members[r.EntryID] = append(members[r.EntryID], r.UserID)
	}
	return members, nil
}
