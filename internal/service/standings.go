package service

import (
	"sort"

	"clubladder/internal/scoring"
)

// BuildLeaderboard ranks aggregated totals into leaderboard entries.
//
// Order: points descending, then win count descending, then earliest first
// scoring entry, then participant key so two calls over the same totals are
// byte-identical. Ranks use competition ranking: totals still tied after
// the policy comparators share a rank and the next distinct entry skips
// ahead (1, 2, 2, 4). The key fallback only fixes output order, it never
// breaks a rank tie.
func BuildLeaderboard(totals map[string]*Totals) []scoring.LeaderboardEntry {
	ordered := make([]*Totals, 0, len(totals))
	for _, t := range totals {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if !a.FirstEntryAt.Equal(b.FirstEntryAt) {
			return a.FirstEntryAt.Before(b.FirstEntryAt)
		}
		return a.Participant.Key() < b.Participant.Key()
	})

	entries := make([]scoring.LeaderboardEntry, len(ordered))
	for i, t := range ordered {
		rank := i + 1
		if i > 0 && sameStanding(ordered[i-1], t) {
			rank = entries[i-1].Rank
		}
		entries[i] = scoring.LeaderboardEntry{
			Participant: t.Participant,
			TotalPoints: t.Points,
			Wins:        t.Wins,
			Rank:        rank,
		}
	}
	return entries
}

func sameStanding(a, b *Totals) bool {
	return a.Points == b.Points && a.Wins == b.Wins && a.FirstEntryAt.Equal(b.FirstEntryAt)
}

// PageLeaderboard slices a built leaderboard; the builder itself is
// page-agnostic. Offset past the end returns an empty page.
func PageLeaderboard(entries []scoring.LeaderboardEntry, limit, offset int) []scoring.LeaderboardEntry {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []scoring.LeaderboardEntry{}
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}
