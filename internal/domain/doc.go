// Package domain models aggregated parking location data.
//
// # Data Sources
//
// Spots are aggregated from five source families, each normalized by an
// adapter in internal/source:
//
//	sf_meters            City meter inventory (open data portal). Surveyed
//	                     hardware locations; the most precise source.
//	sf_parking_census    Official on-street parking space census. Block-level
//	                     supply counts with per-block coordinates.
//	sf_citations         Parking citation records. Citations imply legal (or
//	                     at least used) parking locations; individually noisy,
//	                     so only dense clusters become candidates.
//	places_api           Commercial places search. Garages and lots with
//	                     business metadata.
//	community_geodata    Crowd-mapped parking features with a contributor
//	                     completeness score.
//
// A sixth name, user_report, marks spots created or confirmed by live user
// reports rather than bulk ingestion.
//
// # Confidence Scale
//
// Confidence is a float64 in [0, 1] everywhere inside the system. Adapters
// assign a per-source baseline (surveyed hardware highest, crowd reports
// lowest) and any source that scores quality on another scale converts at
// the adapter boundary; community completeness arrives as 0-100 and never
// crosses into the domain unconverted. 0 means unknown, not "certainly
// absent".
//
// # Identity
//
// Ingested spot IDs are deterministic SHA-256 hashes of type and rounded
// coordinates, so re-ingesting the same physical spot produces the same ID
// and writes stay idempotent. Four decimal places of coordinate (~11 m)
// absorb the centroid jitter that merging introduces between runs. Spots
// born from user reports get a random UUID instead; they have no upstream
// record to stay stable against.
//
// # Verification Lifecycle
//
// needsVerification marks spots whose existence is inferred (citation
// clusters, low-completeness crowd data) rather than surveyed. Each user
// confirmation increments userConfirmations; at three confirmations a spot
// is promoted to verified and its confidence raised to the near-certain
// band. verifiedSources accumulates every source family that has reported
// the spot, as a sorted set.
package domain
