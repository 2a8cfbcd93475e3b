package store

import (
	"context"
	"errors"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
// Start and End are inclusive calendar days.
type TransactionFilter struct {
	Start         *time.Time
	End           *time.Time
	AccountID     string
	Type          model.TransactionType
	Category      string
	Direction     model.Direction
	Uncategorized bool
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	Status     model.InvoiceStatus
	UnpaidOnly bool
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

// LearningFilter narrows ListLearningRecords.
type LearningFilter struct {
	CategoryID string
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	AlertType          string
	UnacknowledgedOnly bool
}

// Store defines the persistence operations the intelligence core consumes.
type Store interface {
	// Transaction operations
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *model.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*model.Transaction, error)
	GetTotalBalance(ctx context.Context) (float64, error)

	// Invoice operations
	UpsertInvoice(ctx context.Context, invoice *model.Invoice) error
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*model.Invoice, error)
	ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*model.Invoice, error)

	// Learning operations
	SaveLearningRecord(ctx context.Context, record *model.LearningRecord) error
	UpdateLearningRecord(ctx context.Context, record *model.LearningRecord) error
	ListLearningRecords(ctx context.Context, filter LearningFilter) ([]*model.LearningRecord, error)

	// Categorization rule operations
	UpsertCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error
	ListCategorizationRules(ctx context.Context, activeOnly bool) ([]*model.CategorizationRule, error)
	IncrementRuleMatchCount(ctx context.Context, ruleID string) error

	// Alert operations
	CreateAlert(ctx context.Context, alert *model.Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID string) error
}

// Matches reports whether tx passes every set field of the filter.
func (f TransactionFilter) Matches(tx *model.Transaction) bool {
	if f.Start != nil && tx.Date.Before(model.StartOfDay(*f.Start)) {
		return false
	}
	if f.End != nil && tx.Date.After(model.EndOfDay(*f.End)) {
		return false
	}
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.Type != "" && !matchesType(tx, f.Type) {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.Uncategorized && tx.Category != "" {
		return false
	}
	switch f.Direction {
	case model.DirectionIncome:
		return tx.Amount > 0
	case model.DirectionExpense:
		return tx.Amount < 0
	}
	return true
}

func matchesType(tx *model.Transaction, t model.TransactionType) bool {
	switch t {
	case model.TransactionTypeBusiness:
		return tx.IsBusiness || tx.TransactionType == model.TransactionTypeBusiness
	case model.TransactionTypePersonal:
		return tx.IsPersonal || tx.TransactionType == model.TransactionTypePersonal
	}
	return tx.TransactionType == t
}

// Matches reports whether inv passes every set field of the filter.
func (f InvoiceFilter) Matches(inv *model.Invoice) bool {
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if f.UnpaidOnly && !inv.IsUnpaid() {
		return false
	}
	if f.IssuedFrom != nil && inv.IssueDate.Before(model.StartOfDay(*f.IssuedFrom)) {
		return false
	}
	if f.IssuedTo != nil && inv.IssueDate.After(model.EndOfDay(*f.IssuedTo)) {
		return false
	}
	return true
}

// RuleKey identifies a rule by its pattern and target category, the upsert key.
func RuleKey(pattern, categoryID string) string {
	return categoryID + "|" + pattern
}
