package dedup

import (
	"github.com/curbdata/parking-aggregator/internal/domain"
)

// fallbackWeight is the centroid weight for candidates whose source did not
// assign a confidence. Zero-confidence candidates still pin the centroid;
// ignoring them would let a single scored source drag a merged spot onto
// itself entirely.
const fallbackWeight = 0.5

// mergeCluster collapses candidates describing one physical spot:
//
//   - coordinates: confidence-weighted centroid
//   - capacity, confidence: maximum across members
//   - verifiedSources: union of every member's primary and verified sources
//   - regulations: the primary member's, overlaid by meter-sourced members,
//     overlaid by census-sourced members (official data wins)
//   - needsVerification: true if any member needs verification
//   - all other fields: from the primary (highest-confidence) member
//
// The primary is the highest-confidence member, first wins ties. A cluster
// of one is returned unchanged, which is what keeps Dedupe idempotent.
func mergeCluster(cluster []domain.CandidateSpot) domain.CandidateSpot {
	if len(cluster) == 1 {
		return cluster[0]
	}

	primary := cluster[0]
	for _, c := range cluster[1:] {
		if c.Confidence > primary.Confidence {
			primary = c
		}
	}

	var latSum, lonSum, weightSum float64
	maxCapacity := 0
	maxConfidence := 0.0
	needsVerification := false
	sourceSets := make([][]string, 0, len(cluster)*2)

	for _, c := range cluster {
		w := c.Confidence
		if w <= 0 {
			w = fallbackWeight
		}
		latSum += c.Latitude * w
		lonSum += c.Longitude * w
		weightSum += w

		if c.Capacity > maxCapacity {
			maxCapacity = c.Capacity
		}
		if c.Confidence > maxConfidence {
			maxConfidence = c.Confidence
		}
		needsVerification = needsVerification || c.NeedsVerification
		sourceSets = append(sourceSets, []string{c.PrimarySource}, c.VerifiedSources)
	}

	regulations := primary.Regulations
	for _, c := range cluster {
		if c.PrimarySource == domain.SourceMeters {
			regulations = regulations.Merge(c.Regulations)
		}
	}
	for _, c := range cluster {
		if c.PrimarySource == domain.SourceCensus {
			regulations = regulations.Merge(c.Regulations)
		}
	}

	merged := primary
	merged.Latitude = latSum / weightSum
	merged.Longitude = lonSum / weightSum
	merged.Capacity = maxCapacity
	merged.Confidence = maxConfidence
	merged.VerifiedSources = domain.UnionSources(sourceSets...)
	merged.Regulations = regulations
	merged.NeedsVerification = needsVerification
	return merged
}
