package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreAccumulatesAndFlags(t *testing.T) {
	s := NewScore()
	s.Subtract(0.30, "missing_critical_key")
	s.Subtract(0.15, "single_source")

	value, flags := s.Finish()
	assert.InDelta(t, 0.55, value, 0.001)
	assert.Equal(t, []string{"missing_critical_key", "single_source"}, flags)
}

func TestScoreFloorsAtZero(t *testing.T) {
	s := NewScore()
	s.Subtract(0.50, "a").Subtract(0.50, "b").Subtract(0.50, "c")

	value, _ := s.Finish()
	assert.Equal(t, 0.0, value)
}

func TestScoreCeilingsAtOne(t *testing.T) {
	s := NewScore()
	s.Add(0.50)

	value, _ := s.Finish()
	assert.Equal(t, 1.0, value)
}

func TestSubtractZeroAmountSkipsFlag(t *testing.T) {
	s := NewScore()
	s.Subtract(0, "never_applied")

	_, flags := s.Finish()
	assert.Empty(t, flags)
}

func TestClampRange(t *testing.T) {
	assert.Equal(t, 0.70, ClampRange(0.50, 0.70, 1.00))
	assert.Equal(t, 1.00, ClampRange(1.50, 0.70, 1.00))
	assert.Equal(t, 0.85, ClampRange(0.85, 0.70, 1.00))
}
