package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	// 0.1+0.2 drifts in float64
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 0.0, Sum())

	var acc Accumulator
	for i := 0; i < 10; i++ {
		acc.Add(0.1)
	}
	assert.Equal(t, 1.0, acc.Float())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 12.35, Round(12.345))
	assert.Equal(t, -12.35, Round(-12.345))
}

func TestFormatter(t *testing.T) {
	f := NewFormatter("it", "EUR")
	s := f.Format(1234.5)
	assert.Contains(t, s, "€")
	assert.Contains(t, s, "1.234,50")

	en := NewFormatter("en", "USD")
	assert.Contains(t, en.Format(1234.5), "1,234.50")
	assert.Equal(t, "15.3%", en.Percent(0.153))

	fallback := NewFormatter("??", "???")
	assert.Contains(t, fallback.Format(10), "€")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Professional Services", Label("professional_services"))
	assert.Equal(t, "Groceries", Label("groceries"))
	assert.Equal(t, "", Label(""))
}
