// Package dedup collapses candidate spots that describe the same physical
// parking location.
//
// Two strategies implement the same contract. "exact" compares every pair
// and clusters transitively, so chains of nearby candidates collapse into
// one spot; it is O(n^2) and used when fidelity matters more than speed.
// "grid" buckets candidates into threshold-sized degree cells and merges
// within each bucket in one pass; pairs that straddle a cell boundary stay
// unmerged, which is the accepted tradeoff for linear time on large runs.
package dedup

import (
	"fmt"

	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/geo"
)

// metersPerDegree approximates one degree of latitude. Grid cells use the
// same degree size on both axes, so cells are narrower east-west away from
// the equator and the grid merges slightly less eagerly in longitude.
const metersPerDegree = 111320.0

// Strategy deduplicates a batch of candidates. Implementations must be
// idempotent on their own output: clusters of one pass through unchanged,
// so re-running a strategy on its result is a no-op.
type Strategy interface {
	Name() string
	Dedupe(candidates []domain.CandidateSpot) []domain.CandidateSpot
}

// New returns the strategy with the given config name.
func New(name string, thresholdMeters float64) (Strategy, error) {
	switch name {
	case "exact":
		return NewExact(thresholdMeters), nil
	case "grid":
		return NewGrid(thresholdMeters), nil
	default:
		return nil, fmt.Errorf("unknown dedup strategy %q", name)
	}
}

// Exact is the pairwise strategy. Candidates within the threshold of each
// other merge, transitively.
type Exact struct {
	thresholdMeters float64
}

// NewExact creates the pairwise strategy with the given merge threshold.
func NewExact(thresholdMeters float64) *Exact {
	return &Exact{thresholdMeters: thresholdMeters}
}

// Name implements Strategy.
func (e *Exact) Name() string { return "exact" }

// Dedupe implements Strategy. Output order follows the first-seen member
// of each cluster, so results are deterministic for a given input order.
func (e *Exact) Dedupe(candidates []domain.CandidateSpot) []domain.CandidateSpot {
	n := len(candidates)
	if n <= 1 {
		return append([]domain.CandidateSpot(nil), candidates...)
	}

	// Union-find over close pairs. Unions keep the smaller index as root
	// so each cluster stays identified by its first-seen member.
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if geo.Distance(candidates[i].Point(), candidates[j].Point()) <= e.thresholdMeters {
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]domain.CandidateSpot, n)
	order := make([]int, 0, n)
	for i, c := range candidates {
		root := find(i)
		if _, ok := clusters[root]; !ok {
			order = append(order, root)
		}
		clusters[root] = append(clusters[root], c)
	}

	out := make([]domain.CandidateSpot, 0, len(order))
	for _, root := range order {
		out = append(out, mergeCluster(clusters[root]))
	}
	return out
}

// Grid is the bucketing strategy. Candidates sharing a threshold-sized
// degree cell merge; nothing else does.
type Grid struct {
	cellDegrees float64
}

// NewGrid creates the bucketing strategy with cells sized to the merge
// threshold.
func NewGrid(thresholdMeters float64) *Grid {
	return &Grid{cellDegrees: thresholdMeters / metersPerDegree}
}

// Name implements Strategy.
func (g *Grid) Name() string { return "grid" }

// Dedupe implements Strategy. Output order follows the first-seen member
// of each cell.
func (g *Grid) Dedupe(candidates []domain.CandidateSpot) []domain.CandidateSpot {
	if len(candidates) <= 1 {
		return append([]domain.CandidateSpot(nil), candidates...)
	}

	buckets := make(map[string][]domain.CandidateSpot)
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := geo.CellKey(c.Point(), g.cellDegrees)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], c)
	}

	out := make([]domain.CandidateSpot, 0, len(order))
	for _, key := range order {
		out = append(out, mergeCluster(buckets[key]))
	}
	return out
}
