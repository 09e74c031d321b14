// Package rating implements the Elo-style skill model: pure functions over
// ratings and match outcomes, no storage. The ledger in internal/service
// owns persistence and clamping.
package rating

import "math"

// ExpectedScore is the classic Elo win probability of A against B on a
// 400-point logistic curve.
func ExpectedScore(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}

// ComputeUpdate returns the rating deltas for one pairwise result.
// scoreA is 1 for a win, 0.5 for a draw, 0 for a loss. The two sides are
// rounded independently because their K factors can differ: a provisional
// participant converges faster than an established one.
func ComputeUpdate(ratingA, ratingB int, scoreA float64, kA, kB int) (deltaA, deltaB int) {
	ea := ExpectedScore(ratingA, ratingB)
	deltaA = int(math.Round(float64(kA) * (scoreA - ea)))
	deltaB = int(math.Round(float64(kB) * ((1 - scoreA) - (1 - ea))))
	return deltaA, deltaB
}

// Standing is one side of a settled match as the model sees it. Rank is the
// finishing position, 1 is best; equal ranks are a draw between those sides.
type Standing struct {
	Rating int
	K      int
	Rank   int
}

// PairwiseDeltas decomposes a multi-party result into every pairwise
// comparison and sums each side's independent deltas. For two sides this
// degenerates to a single ComputeUpdate, so head-to-head and free-for-all
// go through the same path.
func PairwiseDeltas(standings []Standing) []int {
	deltas := make([]int, len(standings))
	for i := 0; i < len(standings)-1; i++ {
		for j := i + 1; j < len(standings); j++ {
			score := pairScore(standings[i].Rank, standings[j].Rank)
			di, dj := ComputeUpdate(standings[i].Rating, standings[j].Rating, score, standings[i].K, standings[j].K)
			deltas[i] += di
			deltas[j] += dj
		}
	}
	return deltas
}

func pairScore(rankA, rankB int) float64 {
	switch {
	case rankA < rankB:
		return 1
	case rankA > rankB:
		return 0
	default:
		return 0.5
	}
}
