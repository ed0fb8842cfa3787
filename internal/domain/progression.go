package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	// BaseLevel is the level every character starts at.
	BaseLevel = 1
	// MaxLevel bounds level derivation so cumulative thresholds fit in an int64.
	MaxLevel = 600_000

	thresholdFactor = 100

	strengthPerLevel     = 2
	dexterityPerLevel    = 2
	intelligencePerLevel = 2
	luckPerLevel         = 1

	baseHealth     = 100
	healthPerLevel = 20
)

// LevelThreshold returns the experience needed to complete the step into
// level. Level 1 is attained at creation and costs nothing.
func LevelThreshold(level int) int64 {
	if level < 2 {
		return 0
	}
	l := int64(min(level, MaxLevel+1))
	return l * l * thresholdFactor
}

// CumulativeThreshold returns the lifetime experience required to reach
// level, i.e. the sum of LevelThreshold(2..level).
func CumulativeThreshold(level int) int64 {
	if level < 2 {
		return 0
	}
	n := int64(min(level, MaxLevel))
	return thresholdFactor * (n*(n+1)*(2*n+1)/6 - 1)
}

// DeriveLevel returns the greatest level whose cumulative threshold does not
// exceed total.
func DeriveLevel(total int64) int {
	if total <= 0 {
		return BaseLevel
	}
	lo, hi := BaseLevel, MaxLevel
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if CumulativeThreshold(mid) <= total {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// MaxHealthFor is the derived maximum health at level for the given
// intelligence.
func MaxHealthFor(level, intelligence int) int {
	return baseHealth + level*healthPerLevel + intelligence/2
}

// NewExperience builds the per-level experience view for a character at
// level holding current experience past that level's cumulative threshold.
func NewExperience(level int, current int64) Experience {
	limit := LevelThreshold(level + 1)
	return Experience{
		Current:      current,
		Max:          limit,
		ForNextLevel: max(0, limit-current),
	}
}

// LifetimeExperience reconstructs the total experience ever gained.
func (c Character) LifetimeExperience() int64 {
	return CumulativeThreshold(c.Level) + c.Experience.Current
}

// GainExperience returns a copy of c with amount experience applied. Levels
// gained in a single call each grant stat growth; any level-up recomputes
// max health and restores health fully.
func (c Character) GainExperience(amount int64, now time.Time) (Character, error) {
	if amount <= 0 {
		return c, fmt.Errorf("%w: experience amount must be positive, got %d", ErrInvalidInput, amount)
	}
	total := c.LifetimeExperience()
	if amount > math.MaxInt64-total {
		return c, fmt.Errorf("%w: experience amount %d overflows lifetime total", ErrInvalidInput, amount)
	}
	total += amount

	next := c
	newLevel := max(DeriveLevel(total), c.Level)
	if diff := newLevel - c.Level; diff > 0 {
		next.Stats = Stats{
			Strength:     c.Stats.Strength + strengthPerLevel*diff,
			Dexterity:    c.Stats.Dexterity + dexterityPerLevel*diff,
			Intelligence: c.Stats.Intelligence + intelligencePerLevel*diff,
			Luck:         c.Stats.Luck + luckPerLevel*diff,
		}
		maxHealth := MaxHealthFor(newLevel, next.Stats.Intelligence)
		next.Health = Health{Current: maxHealth, Max: maxHealth}
		next.Level = newLevel
	}

	current := total - CumulativeThreshold(newLevel)
	if newLevel == MaxLevel {
		current = min(current, LevelThreshold(MaxLevel+1))
	}
	next.Experience = NewExperience(newLevel, current)
	next.UpdatedAt = now
	return next, nil
}
