package ops

import (
	"math/rand"
	"sync"
)

// Sampler decides which ops events to keep. A busy registry produces far
// more fetch and listing events than the audit trail needs, so high-volume
// actions can be sampled down while lifecycle events keep the default rate.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[string]float64
}

// NewSampler creates a sampler keeping the given fraction of events by
// default. Rates clamp to [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate:  clampRate(defaultRate),
		rateByAction: make(map[string]float64),
	}
}

// ShouldSample reports whether an event for this action should be kept.
func (s *Sampler) ShouldSample(action string) bool {
	return rand.Float64() < s.rateFor(action) //nolint:gosec // sampling decisions don't need crypto rand
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clampRate(rate)
}

// SetDefaultRate changes the rate used by actions without an override.
func (s *Sampler) SetDefaultRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultRate = clampRate(rate)
}

func (s *Sampler) rateFor(action string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rate, ok := s.rateByAction[action]; ok {
		return rate
	}
	return s.defaultRate
}

func clampRate(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	}
	return rate
}
