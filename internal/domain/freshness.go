package domain

// Freshness buckets a reading's age for status/catalog display. It is
// advisory only and never feeds back into sampling behavior.
type Freshness string

const (
	FreshnessUnknown Freshness = "unknown"
	FreshnessLive    Freshness = "live"
	FreshnessRecent  Freshness = "recent"
	FreshnessStale   Freshness = "stale"
	FreshnessCached  Freshness = "cached"
)

// AgeUnknown marks a reading with no recorded timestamp.
const AgeUnknown = -1

// Classify maps an age in whole seconds to a freshness bucket. A negative
// age means the timestamp is unknown.
func Classify(ageSeconds int) Freshness {
	switch {
	case ageSeconds < 0:
		return FreshnessUnknown
	case ageSeconds <= 5:
		return FreshnessLive
	case ageSeconds <= 30:
		return FreshnessRecent
	default:
		return FreshnessStale
	}
}

// ClassifyReading applies the cache override on top of Classify: a point that
// was itself a cache-fallback write reports "cached" unless it has already
// gone stale.
func ClassifyReading(ageSeconds int, fromCache bool) Freshness {
	state := Classify(ageSeconds)
	if fromCache && state != FreshnessStale && state != FreshnessUnknown {
		return FreshnessCached
	}
	return state
}
