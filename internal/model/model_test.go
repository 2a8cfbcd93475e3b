package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceTotal(t *testing.T) {
	t.Run("derived from amount and tax", func(t *testing.T) {
		inv := &Invoice{Amount: 1000, TaxAmount: 220}
		assert.Equal(t, 1220.0, inv.Total())
	})
	t.Run("explicit override wins", func(t *testing.T) {
		inv := &Invoice{Amount: 1000, TaxAmount: 220, TotalAmount: 1200}
		assert.Equal(t, 1200.0, inv.Total())
	})
}

func TestInvoiceOverdue(t *testing.T) {
	now := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -40)

	pending := &Invoice{Status: InvoiceStatusPending, DueDate: &due}
	assert.True(t, pending.IsOverdue(now))
	assert.Equal(t, 40, pending.DaysOverdue(now))

	paid := &Invoice{Status: InvoiceStatusPaid, DueDate: &due}
	assert.False(t, paid.IsOverdue(now))
	assert.Equal(t, 0, paid.DaysOverdue(now))

	noDue := &Invoice{Status: InvoiceStatusPending}
	assert.False(t, noDue.IsOverdue(now))
}

func TestSetType(t *testing.T) {
	tx := &Transaction{}
	tx.SetType(TransactionTypeBusiness)
	assert.True(t, tx.IsBusiness)
	assert.False(t, tx.IsPersonal)

	tx.SetType(TransactionTypePersonal)
	assert.False(t, tx.IsBusiness)
	assert.True(t, tx.IsPersonal)

	tx.SetType(TransactionTypeUnknown)
	assert.False(t, tx.IsBusiness)
	assert.False(t, tx.IsPersonal)
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i].Rank(), order[i-1].Rank())
	}
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityMedium, SeverityHigh))
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
}

func TestPeriods(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, PeriodDays(start, end))

	ps, pe := PreviousPeriod(start, end, 1)
	assert.Equal(t, time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), ps)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), StartOfDay(pe))
	assert.Equal(t, 30, PeriodDays(ps, pe))
}
