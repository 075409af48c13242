package redis

import (
	"context"
	"time"
)

// SchoolRiskSummary is the per-school snapshot written after every scoring
// run. Dashboards read it instead of aggregating students in PostgreSQL.
type SchoolRiskSummary struct {
	SchoolID         string    `json:"school_id"`
	RunID            string    `json:"run_id"`
	StudentsScored   int       `json:"students_scored"`
	UpdatesApplied   int       `json:"updates_applied"`
	UpdatesUnmatched int       `json:"updates_unmatched"`
	HighRiskCount    int       `json:"high_risk_count"`
	MeanDropoutRisk  float64   `json:"mean_dropout_risk"`
	ScoredAt         time.Time `json:"scored_at"`
}

// RiskCache stores school risk summaries.
type RiskCache struct {
	cache *Cache
}

// NewRiskCache creates a new RiskCache.
func NewRiskCache(cache *Cache) *RiskCache {
	return &RiskCache{cache: cache}
}

// SchoolKey builds the cache key for a school's risk summary.
func SchoolKey(schoolID string) string {
	return PrefixRisk + "school:" + schoolID
}

// SetSummary stores a school's risk summary.
func (r *RiskCache) SetSummary(ctx context.Context, s SchoolRiskSummary) error {
	return r.cache.Set(ctx, SchoolKey(s.SchoolID), s, TTLRiskSummary)
}

// GetSummary retrieves a school's risk summary. Returns ErrCacheMiss when the
// school has not been scored within the summary TTL.
func (r *RiskCache) GetSummary(ctx context.Context, schoolID string) (*SchoolRiskSummary, error) {
	var s SchoolRiskSummary
	if err := r.cache.Get(ctx, SchoolKey(schoolID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
