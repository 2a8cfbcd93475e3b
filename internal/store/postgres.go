package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements the Store interface on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &PostgresStore{pool: pool}
}

// ConnectPostgres opens a pool and verifies the connection.
func ConnectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// MigratePostgres applies the embedded schema migrations to the database at url.
func MigratePostgres(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(url))
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres:// URL to the scheme the pgx/v5 migrate driver registers.
func pgx5URL(url string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx5://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

// Transaction operations

const transactionColumns = `id, account_id, date, value_date, amount, balance, description, category,
	subcategory, transaction_type, is_personal, is_business, reconciled, invoice_id, import_source`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tx model.Transaction
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Date, &tx.ValueDate, &tx.Amount, &tx.Balance,
		&tx.Description, &tx.Category, &tx.Subcategory, &tx.TransactionType, &tx.IsPersonal,
		&tx.IsBusiness, &tx.Reconciled, &tx.InvoiceID, &tx.ImportSource)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.TransactionType == "" {
		tx.TransactionType = model.TransactionTypeUnknown
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		tx.ID, tx.AccountID, tx.Date, tx.ValueDate, tx.Amount, tx.Balance, tx.Description,
		tx.Category, tx.Subcategory, string(tx.TransactionType), tx.IsPersonal, tx.IsBusiness,
		tx.Reconciled, tx.InvoiceID, tx.ImportSource)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, transactionID)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET account_id = $2, date = $3, value_date = $4, amount = $5, balance = $6, description = $7,
			category = $8, subcategory = $9, transaction_type = $10, is_personal = $11,
			is_business = $12, reconciled = $13, invoice_id = $14, import_source = $15
		WHERE id = $1`,
		tx.ID, tx.AccountID, tx.Date, tx.ValueDate, tx.Amount, tx.Balance, tx.Description,
		tx.Category, tx.Subcategory, string(tx.TransactionType), tx.IsPersonal, tx.IsBusiness,
		tx.Reconciled, tx.InvoiceID, tx.ImportSource)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*model.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Start != nil {
		add("date >= $%d", model.StartOfDay(*filter.Start))
	}
	if filter.End != nil {
		add("date <= $%d", model.EndOfDay(*filter.End))
	}
	if filter.AccountID != "" {
		add("account_id = $%d", filter.AccountID)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	switch filter.Type {
	case model.TransactionTypeBusiness:
		where = append(where, "(is_business OR transaction_type = 'business')")
	case model.TransactionTypePersonal:
		where = append(where, "(is_personal OR transaction_type = 'personal')")
	case model.TransactionTypeUnknown:
		where = append(where, "transaction_type = 'unknown'")
	}
	if filter.Uncategorized {
		where = append(where, "category = ''")
	}
	switch filter.Direction {
	case model.DirectionIncome:
		where = append(where, "amount > 0")
	case model.DirectionExpense:
		where = append(where, "amount < 0")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// GetTotalBalance sums the latest balance snapshot per account, falling back to
// the signed sum of amounts for accounts that never reported a balance.
func (s *PostgresStore) GetTotalBalance(ctx context.Context) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(account_balance), 0) FROM (
			SELECT COALESCE(
				(SELECT t2.balance FROM transactions t2
				 WHERE t2.account_id = t.account_id AND t2.balance IS NOT NULL
				 ORDER BY t2.date DESC, t2.id DESC LIMIT 1),
				SUM(t.amount)
			) AS account_balance
			FROM transactions t
			GROUP BY t.account_id
		) balances`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to compute balance: %w", err)
	}
	return total, nil
}

// Invoice operations

const invoiceColumns = `id, client_id, invoice_number, issue_date, due_date, paid_date, amount,
	tax_amount, total_amount, status, external_status`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.InvoiceNumber, &inv.IssueDate, &inv.DueDate,
		&inv.PaidDate, &inv.Amount, &inv.TaxAmount, &inv.TotalAmount, &inv.Status, &inv.ExternalStatus)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PostgresStore) UpsertInvoice(ctx context.Context, invoice *model.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			client_id = EXCLUDED.client_id, invoice_number = EXCLUDED.invoice_number,
			issue_date = EXCLUDED.issue_date, due_date = EXCLUDED.due_date,
			paid_date = EXCLUDED.paid_date, amount = EXCLUDED.amount,
			tax_amount = EXCLUDED.tax_amount, total_amount = EXCLUDED.total_amount,
			status = EXCLUDED.status, external_status = EXCLUDED.external_status`,
		invoice.ID, invoice.ClientID, invoice.InvoiceNumber, invoice.IssueDate, invoice.DueDate,
		invoice.PaidDate, invoice.Amount, invoice.TaxAmount, invoice.TotalAmount,
		string(invoice.Status), invoice.ExternalStatus)
	if err != nil {
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryInvoices(ctx context.Context, query string, args ...any) ([]*model.Invoice, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var result []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*model.Invoice, error) {
	invoices, err := s.queryInvoices(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY issue_date, id`)
	if err != nil {
		return nil, err
	}
	var result []*model.Invoice
	for _, inv := range invoices {
		if filter.Matches(inv) {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (s *PostgresStore) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*model.Invoice, error) {
	invoices, err := s.queryInvoices(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE due_date < $1 AND paid_date IS NULL
		ORDER BY issue_date, id`, asOf)
	if err != nil {
		return nil, err
	}
	var result []*model.Invoice
	for _, inv := range invoices {
		if inv.IsOverdue(asOf) {
			result = append(result, inv)
		}
	}
	return result, nil
}

// Learning operations

func (s *PostgresStore) SaveLearningRecord(ctx context.Context, record *model.LearningRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	keywords := record.KeywordsExtracted
	if keywords == nil {
		keywords = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learning_records (id, transaction_id, original_description, normalized_description,
			assigned_category_id, transaction_type, assigned_by, confidence, keywords_extracted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.TransactionID, record.OriginalDescription, record.NormalizedDescription,
		record.AssignedCategoryID, string(record.TransactionType), string(record.AssignedBy),
		record.Confidence, keywords, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save learning record: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLearningRecord(ctx context.Context, record *model.LearningRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE learning_records SET confidence = $2, assigned_category_id = $3 WHERE id = $1`,
		record.ID, record.Confidence, record.AssignedCategoryID)
	if err != nil {
		return fmt.Errorf("failed to update learning record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("learning record %s: %w", record.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListLearningRecords(ctx context.Context, filter LearningFilter) ([]*model.LearningRecord, error) {
	query := `
		SELECT id, transaction_id, original_description, normalized_description, assigned_category_id,
			transaction_type, assigned_by, confidence, keywords_extracted, created_at
		FROM learning_records`
	var args []any
	if filter.CategoryID != "" {
		query += ` WHERE assigned_category_id = $1`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning records: %w", err)
	}
	defer rows.Close()

	var result []*model.LearningRecord
	for rows.Next() {
		var r model.LearningRecord
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.OriginalDescription, &r.NormalizedDescription,
			&r.AssignedCategoryID, &r.TransactionType, &r.AssignedBy, &r.Confidence,
			&r.KeywordsExtracted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learning record: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// Categorization rule operations

func (s *PostgresStore) UpsertCategorizationRule(ctx context.Context, rule *model.CategorizationRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categorization_rules (id, rule_type, pattern, category_id, subcategory_id,
			transaction_type, priority, is_active, match_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pattern, category_id) DO UPDATE SET
			rule_type = EXCLUDED.rule_type, subcategory_id = EXCLUDED.subcategory_id,
			transaction_type = EXCLUDED.transaction_type, priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			match_count = GREATEST(categorization_rules.match_count, EXCLUDED.match_count)
		RETURNING id, match_count, created_at`,
		rule.ID, string(rule.RuleType), rule.Pattern, rule.CategoryID, rule.SubcategoryID,
		string(rule.TransactionType), rule.Priority, rule.IsActive, rule.MatchCount, rule.CreatedAt).
		Scan(&rule.ID, &rule.MatchCount, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCategorizationRules(ctx context.Context, activeOnly bool) ([]*model.CategorizationRule, error) {
	query := `
		SELECT id, rule_type, pattern, category_id, subcategory_id, transaction_type, priority,
			is_active, match_count, created_at
		FROM categorization_rules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY priority DESC, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var result []*model.CategorizationRule
	for rows.Next() {
		var r model.CategorizationRule
		if err := rows.Scan(&r.ID, &r.RuleType, &r.Pattern, &r.CategoryID, &r.SubcategoryID,
			&r.TransactionType, &r.Priority, &r.IsActive, &r.MatchCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

func (s *PostgresStore) IncrementRuleMatchCount(ctx context.Context, ruleID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE categorization_rules SET match_count = match_count + 1 WHERE id = $1`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to increment rule match count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return nil
}

// Alert operations

func (s *PostgresStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, alert_type, severity, message, current_value, threshold_value,
			acknowledged, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		alert.ID, alert.AlertType, string(alert.Severity), alert.Message, alert.CurrentValue,
		alert.ThresholdValue, alert.Acknowledged, alert.IsActive, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error) {
	var (
		where []string
		args  []any
	)
	if filter.AlertType != "" {
		args = append(args, filter.AlertType)
		where = append(where, fmt.Sprintf("alert_type = $%d", len(args)))
	}
	if filter.UnacknowledgedOnly {
		where = append(where, "NOT acknowledged")
	}
	query := `
		SELECT id, alert_type, severity, message, current_value, threshold_value, acknowledged,
			is_active, created_at
		FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var result []*model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.AlertType, &a.Severity, &a.Message, &a.CurrentValue,
			&a.ThresholdValue, &a.Acknowledged, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET acknowledged = TRUE WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}
