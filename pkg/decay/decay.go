// Package decay computes how much a memory can still be trusted.
//
// Confidence is never stored. It is derived on every read from the memory's
// decay policy, its timestamps and the configured half-life, so it is always
// consistent with the instant it was computed for.
package decay

import (
	"fmt"
	"math"
	"time"
)

// DefaultHalfLifeHours is the number of hours over which a decaying memory
// falls from full confidence to zero (30 days).
const DefaultHalfLifeHours = 720.0

// Policy governs how a memory's confidence falls off with time.
type Policy string

const (
	// Stable memories never decay.
	Stable Policy = "stable"

	// Contextual memories decay linearly from creation and cannot be reinforced.
	Contextual Policy = "contextual"

	// Reinforceable memories decay linearly from their last reinforcement.
	Reinforceable Policy = "reinforceable"
)

// Policies returns every known policy in display order.
func Policies() []Policy {
	return []Policy{Stable, Contextual, Reinforceable}
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case Stable, Contextual, Reinforceable:
		return true
	default:
		return false
	}
}

func (p Policy) String() string {
	return string(p)
}

// ParsePolicy converts s into a known Policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid decay policy %q (available: stable, contextual, reinforceable)", s)
	}
	return p, nil
}

// Confidence returns the current confidence of a memory in [0, 1], rounded
// to 4 decimal places.
//
// Stable memories always report 1.0. Every other policy decays linearly over
// halfLifeHours; reinforceable memories measure age from lastReinforcedAt
// when it is set (non-zero) and from createdAt otherwise. Policies this
// package does not know about decay like contextual ones.
func Confidence(policy Policy, createdAt, lastReinforcedAt time.Time, halfLifeHours float64, now time.Time) float64 {
	if policy == Stable {
		return 1.0
	}

	if halfLifeHours <= 0 {
		return 0.0
	}

	anchor := createdAt
	if policy == Reinforceable && !lastReinforcedAt.IsZero() {
		anchor = lastReinforcedAt
	}

	ageHours := now.Sub(anchor).Hours()
	confidence := 1.0 - ageHours/halfLifeHours

	// A future anchor (clock skew between writers) must not push us above 1.
	confidence = math.Min(1.0, math.Max(0.0, confidence))

	return round4(confidence)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
