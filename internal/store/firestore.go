package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colTransactions    = "transactions"
	colInvoices        = "invoices"
	colLearningRecords = "learning_records"
	colRules           = "categorization_rules"
	colAlerts          = "alerts"
)

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

func notFound(err error, what, id string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s %s: %w", what, id, err)
}

// Transaction operations

func (s *FirestoreStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.TransactionType == "" {
		tx.TransactionType = model.TransactionTypeUnknown
	}
	_, err := s.client.Collection(colTransactions).Doc(tx.ID).Set(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	doc, err := s.client.Collection(colTransactions).Doc(transactionID).Get(ctx)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	var tx model.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return &tx, nil
}

func (s *FirestoreStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	ref := s.client.Collection(colTransactions).Doc(tx.ID)
	if _, err := ref.Get(ctx); err != nil {
		return notFound(err, "transaction", tx.ID)
	}
	if _, err := ref.Set(ctx, tx); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// ListTransactions pushes the date range and account down to Firestore and applies
// the remaining filters in memory; Firestore cannot combine them without composite indexes.
func (s *FirestoreStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*model.Transaction, error) {
	query := s.client.Collection(colTransactions).Query
	if filter.AccountID != "" {
		query = query.Where("accountId", "==", filter.AccountID)
	}
	if filter.Start != nil {
		query = query.Where("date", ">=", model.StartOfDay(*filter.Start))
	}
	if filter.End != nil {
		query = query.Where("date", "<=", model.EndOfDay(*filter.End))
	}
	query = query.OrderBy("date", firestore.Asc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.Transaction
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions: %w", err)
		}
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return nil, fmt.Errorf("failed to parse transaction %s: %w", doc.Ref.ID, err)
		}
		if filter.Matches(&tx) {
			result = append(result, &tx)
		}
	}
	return result, nil
}

func (s *FirestoreStore) GetTotalBalance(ctx context.Context) (float64, error) {
	docs, err := s.client.Collection(colTransactions).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to load balances: %w", err)
	}
	txs := make([]*model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return 0, fmt.Errorf("failed to parse transaction %s: %w", doc.Ref.ID, err)
		}
		txs = append(txs, &tx)
	}
	return BalanceFromTransactions(txs), nil
}

// Invoice operations

func (s *FirestoreStore) UpsertInvoice(ctx context.Context, invoice *model.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	if _, err := s.client.Collection(colInvoices).Doc(invoice.ID).Set(ctx, invoice); err != nil {
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*model.Invoice, error) {
	query := s.client.Collection(colInvoices).Query
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	var result []*model.Invoice
	for _, doc := range docs {
		var inv model.Invoice
		if err := doc.DataTo(&inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice %s: %w", doc.Ref.ID, err)
		}
		if filter.Matches(&inv) {
			result = append(result, &inv)
		}
	}
	sortInvoices(result)
	return result, nil
}

func (s *FirestoreStore) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*model.Invoice, error) {
	docs, err := s.client.Collection(colInvoices).
		Where("dueDate", "<", asOf).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue invoices: %w", err)
	}

	var result []*model.Invoice
	for _, doc := range docs {
		var inv model.Invoice
		if err := doc.DataTo(&inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice %s: %w", doc.Ref.ID, err)
		}
		if inv.IsOverdue(asOf) {
			result = append(result, &inv)
		}
	}
	sortInvoices(result)
	return result, nil
}

// Learning operations

func (s *FirestoreStore) SaveLearningRecord(ctx context.Context, record *model.LearningRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if _, err := s.client.Collection(colLearningRecords).Doc(record.ID).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to save learning record: %w", err)
	}
	return nil
}

func (s *FirestoreStore) UpdateLearningRecord(ctx context.Context, record *model.LearningRecord) error {
	_, err := s.client.Collection(colLearningRecords).Doc(record.ID).Update(ctx, []firestore.Update{
		{Path: "confidence", Value: record.Confidence},
		{Path: "assignedCategoryId", Value: record.AssignedCategoryID},
	})
	if err != nil {
		return notFound(err, "learning record", record.ID)
	}
	return nil
}

func (s *FirestoreStore) ListLearningRecords(ctx context.Context, filter LearningFilter) ([]*model.LearningRecord, error) {
	query := s.client.Collection(colLearningRecords).Query
	if filter.CategoryID != "" {
		query = query.Where("assignedCategoryId", "==", filter.CategoryID)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list learning records: %w", err)
	}

	result := make([]*model.LearningRecord, 0, len(docs))
	for _, doc := range docs {
		var r model.LearningRecord
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("failed to parse learning record %s: %w", doc.Ref.ID, err)
		}
		result = append(result, &r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Categorization rule operations

// ruleDocID derives a stable document ID from the upsert key; patterns may
// contain characters Firestore rejects in IDs.
func ruleDocID(pattern, categoryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(RuleKey(pattern, categoryID))).String()
}

func (s *FirestoreStore) UpsertCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error {
	id := ruleDocID(rule.Pattern, rule.CategoryID)
	ref := s.client.Collection(colRules).Doc(id)

	return s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		doc, err := t.Get(ref)
		if err == nil {
			var existing model.CategorizationRule
			if err := doc.DataTo(&existing); err != nil {
				return fmt.Errorf("failed to parse rule: %w", err)
			}
			if rule.MatchCount < existing.MatchCount {
				rule.MatchCount = existing.MatchCount
			}
			if rule.CreatedAt.IsZero() {
				rule.CreatedAt = existing.CreatedAt
			}
		} else if status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to read rule: %w", err)
		}
		rule.ID = id
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = time.Now()
		}
		return t.Set(ref, rule)
	})
}

func (s *FirestoreStore) ListCategorizationRules(ctx context.Context, activeOnly bool) ([]*model.CategorizationRule, error) {
	query := s.client.Collection(colRules).Query
	if activeOnly {
		query = query.Where("isActive", "==", true)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	result := make([]*model.CategorizationRule, 0, len(docs))
	for _, doc := range docs {
		var r model.CategorizationRule
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("failed to parse rule %s: %w", doc.Ref.ID, err)
		}
		result = append(result, &r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *FirestoreStore) IncrementRuleMatchCount(ctx context.Context, ruleID string) error {
	_, err := s.client.Collection(colRules).Doc(ruleID).Update(ctx, []firestore.Update{
		{Path: "matchCount", Value: firestore.Increment(1)},
	})
	if err != nil {
		return notFound(err, "rule", ruleID)
	}
	return nil
}

// Alert operations

func (s *FirestoreStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if _, err := s.client.Collection(colAlerts).Doc(alert.ID).Set(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error) {
	query := s.client.Collection(colAlerts).Query
	if filter.AlertType != "" {
		query = query.Where("alertType", "==", filter.AlertType)
	}
	if filter.UnacknowledgedOnly {
		query = query.Where("acknowledged", "==", false)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	result := make([]*model.Alert, 0, len(docs))
	for _, doc := range docs {
		var a model.Alert
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to parse alert %s: %w", doc.Ref.ID, err)
		}
		result = append(result, &a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *FirestoreStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	_, err := s.client.Collection(colAlerts).Doc(alertID).Update(ctx, []firestore.Update{
		{Path: "acknowledged", Value: true},
	})
	if err != nil {
		return notFound(err, "alert", alertID)
	}
	return nil
}
