// Package cost counts how guest questions were answered and estimates what
// the live API calls cost.
package cost

import (
	"sync/atomic"

	"github.com/pario-ai/bistro/pkg/models"
)

// DefaultPricePerCall is the estimated USD price of one completion call.
const DefaultPricePerCall = 0.002

// Tracker holds per-process answer counters. Create one per server or test
// run; the zero value is not usable.
type Tracker struct {
	pricePerCall float64

	cached   atomic.Int64
	api      atomic.Int64
	fallback atomic.Int64
}

// NewTracker creates a Tracker. A non-positive price uses DefaultPricePerCall.
func NewTracker(pricePerCall float64) *Tracker {
	if pricePerCall <= 0 {
		pricePerCall = DefaultPricePerCall
	}
	return &Tracker{pricePerCall: pricePerCall}
}

// Track increments exactly one counter. fallback takes precedence over cached.
func (t *Tracker) Track(cached, fallback bool) {
	switch {
	case fallback:
		t.fallback.Add(1)
	case cached:
		t.cached.Add(1)
	default:
		t.api.Add(1)
	}
}

// TrackSource is Track keyed by answer source.
func (t *Tracker) TrackSource(src models.Source) {
	t.Track(src == models.SourceCache, src == models.SourceFallback)
}

// Counters returns the raw counts.
func (t *Tracker) Counters() models.UsageCounters {
	return models.UsageCounters{
		Cached:   t.cached.Load(),
		API:      t.api.Load(),
		Fallback: t.fallback.Load(),
	}
}

// Stats returns counts plus the savings rate and estimated API spend.
func (t *Tracker) Stats() models.CostStats {
	c := t.Counters()
	total := c.Cached + c.API + c.Fallback
	s := models.CostStats{
		Cached:        c.Cached,
		API:           c.API,
		Fallback:      c.Fallback,
		Total:         total,
		EstimatedCost: float64(c.API) * t.pricePerCall,
	}
	if total > 0 {
		s.SavingsRate = float64(c.Cached+c.Fallback) / float64(total)
	}
	return s
}

// Reset zeroes all counters.
func (t *Tracker) Reset() {
	t.cached.Store(0)
	t.api.Store(0)
	t.fallback.Store(0)
}
