package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/google/uuid"
)

// MemoryStore implements Store interface with in-memory storage.
// Records are copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu sync.RWMutex

	transactions    map[string]*model.Transaction
	invoices        map[string]*model.Invoice
	learningRecords map[string]*model.LearningRecord
	rules           map[string]*model.CategorizationRule
	alerts          map[string]*model.Alert
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:    make(map[string]*model.Transaction),
		invoices:        make(map[string]*model.Invoice),
		learningRecords: make(map[string]*model.LearningRecord),
		rules:           make(map[string]*model.CategorizationRule),
		alerts:          make(map[string]*model.Alert),
	}
}

// Transaction operations

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.TransactionType == "" {
		tx.TransactionType = model.TransactionTypeUnknown
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[tx.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Transaction
	for _, tx := range m.transactions {
		if filter.Matches(tx) {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetTotalBalance sums the most recent known balance of every account. Accounts
// without any balance snapshot contribute the signed sum of their amounts.
func (m *MemoryStore) GetTotalBalance(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := make([]*model.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		txs = append(txs, tx)
	}
	return BalanceFromTransactions(txs), nil
}

// BalanceFromTransactions derives the ledger balance from transaction rows.
func BalanceFromTransactions(txs []*model.Transaction) float64 {
	type snapshot struct {
		date    time.Time
		balance float64
	}
	latest := make(map[string]snapshot)
	sums := make(map[string]float64)
	for _, tx := range txs {
		sums[tx.AccountID] += tx.Amount
		if tx.Balance == nil {
			continue
		}
		if s, ok := latest[tx.AccountID]; !ok || tx.Date.After(s.date) {
			latest[tx.AccountID] = snapshot{date: tx.Date, balance: *tx.Balance}
		}
	}

	var total float64
	for account, sum := range sums {
		if s, ok := latest[account]; ok {
			total += s.balance
		} else {
			total += sum
		}
	}
	return total
}

// Invoice operations

func (m *MemoryStore) UpsertInvoice(ctx context.Context, invoice *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	cp := *invoice
	m.invoices[invoice.ID] = &cp
	return nil
}

func (m *MemoryStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Invoice
	for _, inv := range m.invoices {
		if filter.Matches(inv) {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sortInvoices(result)
	return result, nil
}

func (m *MemoryStore) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Invoice
	for _, inv := range m.invoices {
		if inv.IsOverdue(asOf) {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sortInvoices(result)
	return result, nil
}

func sortInvoices(invoices []*model.Invoice) {
	sort.Slice(invoices, func(i, j int) bool {
		if invoices[i].IssueDate.Equal(invoices[j].IssueDate) {
			return invoices[i].ID < invoices[j].ID
		}
		return invoices[i].IssueDate.Before(invoices[j].IssueDate)
	})
}

// Learning operations

func (m *MemoryStore) SaveLearningRecord(ctx context.Context, record *model.LearningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	m.learningRecords[record.ID] = copyRecord(record)
	return nil
}

func (m *MemoryStore) UpdateLearningRecord(ctx context.Context, record *model.LearningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.learningRecords[record.ID]; !ok {
		return fmt.Errorf("learning record %s: %w", record.ID, ErrNotFound)
	}
	m.learningRecords[record.ID] = copyRecord(record)
	return nil
}

func (m *MemoryStore) ListLearningRecords(ctx context.Context, filter LearningFilter) ([]*model.LearningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.LearningRecord
	for _, r := range m.learningRecords {
		if filter.CategoryID != "" && r.AssignedCategoryID != filter.CategoryID {
			continue
		}
		result = append(result, copyRecord(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func copyRecord(r *model.LearningRecord) *model.LearningRecord {
	cp := *r
	cp.KeywordsExtracted = append([]string(nil), r.KeywordsExtracted...)
	return &cp
}

// Categorization rule operations

// UpsertCategorizationRule replaces an existing rule with the same pattern and
// category, keeping its ID and match count.
func (m *MemoryStore) UpsertCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := RuleKey(rule.Pattern, rule.CategoryID)
	for _, existing := range m.rules {
		if RuleKey(existing.Pattern, existing.CategoryID) == key {
			rule.ID = existing.ID
			if rule.MatchCount < existing.MatchCount {
				rule.MatchCount = existing.MatchCount
			}
			if rule.CreatedAt.IsZero() {
				rule.CreatedAt = existing.CreatedAt
			}
			break
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *MemoryStore) ListCategorizationRules(ctx context.Context, activeOnly bool) ([]*model.CategorizationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.CategorizationRule
	for _, r := range m.rules {
		if activeOnly && !r.IsActive {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryStore) IncrementRuleMatchCount(ctx context.Context, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	r.MatchCount++
	return nil
}

// Alert operations

func (m *MemoryStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	cp := *alert
	m.alerts[alert.ID] = &cp
	return nil
}

func (m *MemoryStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Alert
	for _, a := range m.alerts {
		if filter.AlertType != "" && a.AlertType != filter.AlertType {
			continue
		}
		if filter.UnacknowledgedOnly && a.Acknowledged {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	a.Acknowledged = true
	return nil
}
