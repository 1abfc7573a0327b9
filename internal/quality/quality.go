// Package quality implements the shared data-quality scoring helper used
// by every consolidator (spec.md §4.8): start at 1.00, subtract for
// defects, floor/ceiling the result, and collect the flags that fired.
// Entity-specific defect rules live in the consolidator packages; this
// package only owns the accumulate-and-clamp arithmetic so every
// consolidator scores the same way.
package quality

// Score accumulates weighted defects/bonuses against a starting value of
// 1.00 and clamps the result to [0.00, 1.00].
type Score struct {
	value float64
	flags []string
}

// NewScore starts a fresh score at 1.00.
func NewScore() *Score {
	return &Score{value: 1.00}
}

// Subtract applies a penalty and records flag if the penalty was non-zero.
func (s *Score) Subtract(amount float64, flag string) *Score {
	s.value -= amount
	if amount != 0 && flag != "" {
		s.flags = append(s.flags, flag)
	}
	return s
}

// Add applies a bonus (no flag — bonuses are not defects).
func (s *Score) Add(amount float64) *Score {
	s.value += amount
	return s
}

// Flag appends a tag without affecting the numeric score (used for
// informational flags like low_confidence/high_confidence that are
// derived from the final value rather than a specific defect).
func (s *Score) Flag(flag string) *Score {
	s.flags = append(s.flags, flag)
	return s
}

// Finish clamps the accumulated value to [0.00, 1.00] and returns it with
// the flags collected so far, in the order they were recorded.
func (s *Score) Finish() (float64, []string) {
	v := s.value
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return round2(v), s.flags
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ClampRange clamps v to [min, max] — used by the lab-computer associator's
// tier-1/tier-2 confidence bounds (spec.md §4.9).
func ClampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
