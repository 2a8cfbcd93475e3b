// Package model holds the ledger entities shared by the store and the
// intelligence services.
package model

import (
	"math"
	"time"
)

// TransactionType classifies a transaction as business or personal spending.
type TransactionType string

const (
	TransactionTypeUnknown  TransactionType = "unknown"
	TransactionTypeBusiness TransactionType = "business"
	TransactionTypePersonal TransactionType = "personal"
)

// Direction selects income (positive amounts) or expenses (negative amounts).
type Direction string

const (
	DirectionAll     Direction = ""
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Transaction is a single bank movement. Amount is signed: income > 0, expense < 0.
type Transaction struct {
	ID              string          `json:"id" firestore:"id"`
	AccountID       string          `json:"account_id" firestore:"accountId"`
	Date            time.Time       `json:"date" firestore:"date"`
	ValueDate       *time.Time      `json:"value_date,omitempty" firestore:"valueDate,omitempty"`
	Amount          float64         `json:"amount" firestore:"amount"`
	Balance         *float64        `json:"balance,omitempty" firestore:"balance,omitempty"`
	Description     string          `json:"description" firestore:"description"`
	Category        string          `json:"category,omitempty" firestore:"category"`
	Subcategory     string          `json:"subcategory,omitempty" firestore:"subcategory"`
	TransactionType TransactionType `json:"transaction_type" firestore:"transactionType"`
	IsPersonal      bool            `json:"is_personal" firestore:"isPersonal"`
	IsBusiness      bool            `json:"is_business" firestore:"isBusiness"`
	Reconciled      bool            `json:"reconciled" firestore:"reconciled"`
	InvoiceID       string          `json:"invoice_id,omitempty" firestore:"invoiceId"`
	ImportSource    string          `json:"import_source,omitempty" firestore:"importSource"`
}

// IsIncome reports whether the transaction credits the account.
func (t *Transaction) IsIncome() bool { return t.Amount > 0 }

// IsExpense reports whether the transaction debits the account.
func (t *Transaction) IsExpense() bool { return t.Amount < 0 }

// AbsAmount returns the unsigned amount.
func (t *Transaction) AbsAmount() float64 { return math.Abs(t.Amount) }

// SetType sets TransactionType together with the IsBusiness/IsPersonal flags
// so that exactly one flag is set for a known type.
func (t *Transaction) SetType(tt TransactionType) {
	t.TransactionType = tt
	t.IsBusiness = tt == TransactionTypeBusiness
	t.IsPersonal = tt == TransactionTypePersonal
}

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is an issued sales invoice.
type Invoice struct {
	ID             string        `json:"id" firestore:"id"`
	ClientID       string        `json:"client_id,omitempty" firestore:"clientId"`
	InvoiceNumber  string        `json:"invoice_number" firestore:"invoiceNumber"`
	IssueDate      time.Time     `json:"issue_date" firestore:"issueDate"`
	DueDate        *time.Time    `json:"due_date,omitempty" firestore:"dueDate,omitempty"`
	PaidDate       *time.Time    `json:"paid_date,omitempty" firestore:"paidDate,omitempty"`
	Amount         float64       `json:"amount" firestore:"amount"`
	TaxAmount      float64       `json:"tax_amount" firestore:"taxAmount"`
	TotalAmount    float64       `json:"total_amount" firestore:"totalAmount"`
	Status         InvoiceStatus `json:"status" firestore:"status"`
	ExternalStatus string        `json:"external_status,omitempty" firestore:"externalStatus"`
}

// Total returns TotalAmount when it was explicitly set, otherwise Amount+TaxAmount.
func (i *Invoice) Total() float64 {
	if i.TotalAmount != 0 {
		return i.TotalAmount
	}
	return i.Amount + i.TaxAmount
}

// IsUnpaid reports whether the invoice still expects payment.
func (i *Invoice) IsUnpaid() bool {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusDraft:
		return false
	}
	return i.PaidDate == nil
}

// IsOverdue reports whether the invoice is unpaid past its due date as of asOf.
func (i *Invoice) IsOverdue(asOf time.Time) bool {
	return i.IsUnpaid() && i.DueDate != nil && i.DueDate.Before(asOf)
}

// DaysOverdue returns whole days past the due date, 0 when not overdue.
func (i *Invoice) DaysOverdue(asOf time.Time) int {
	if !i.IsOverdue(asOf) {
		return 0
	}
	return int(asOf.Sub(*i.DueDate).Hours() / 24)
}

// AssignedBy records who produced a learning record.
type AssignedBy string

const (
	AssignedByManual AssignedBy = "manual"
	AssignedByAuto   AssignedBy = "auto"
)

// LearningRecord is one piece of categorization evidence.
type LearningRecord struct {
	ID                    string          `json:"id" firestore:"id"`
	TransactionID         string          `json:"transaction_id" firestore:"transactionId"`
	OriginalDescription   string          `json:"original_description" firestore:"originalDescription"`
	NormalizedDescription string          `json:"normalized_description" firestore:"normalizedDescription"`
	AssignedCategoryID    string          `json:"assigned_category_id" firestore:"assignedCategoryId"`
	TransactionType       TransactionType `json:"transaction_type" firestore:"transactionType"`
	AssignedBy            AssignedBy      `json:"assigned_by" firestore:"assignedBy"`
	Confidence            float64         `json:"confidence" firestore:"confidence"`
	KeywordsExtracted     []string        `json:"keywords_extracted" firestore:"keywordsExtracted"`
	CreatedAt             time.Time       `json:"created_at" firestore:"createdAt"`
}

// RuleType distinguishes hand-written pattern rules from promoted ones.
type RuleType string

const (
	RuleTypePattern RuleType = "pattern"
	RuleTypeLearned RuleType = "learned"
)

// CategorizationRule maps a normalized description pattern to a category.
type CategorizationRule struct {
	ID              string          `json:"id" firestore:"id"`
	RuleType        RuleType        `json:"rule_type" firestore:"ruleType"`
	Pattern         string          `json:"pattern" firestore:"pattern"`
	CategoryID      string          `json:"category_id" firestore:"categoryId"`
	SubcategoryID   string          `json:"subcategory_id,omitempty" firestore:"subcategoryId"`
	TransactionType TransactionType `json:"transaction_type" firestore:"transactionType"`
	Priority        int             `json:"priority" firestore:"priority"`
	IsActive        bool            `json:"is_active" firestore:"isActive"`
	MatchCount      int             `json:"match_count" firestore:"matchCount"`
	CreatedAt       time.Time       `json:"created_at" firestore:"createdAt"`
}

// Alert is a persisted notification raised by threshold checks.
type Alert struct {
	ID             string    `json:"id" firestore:"id"`
	AlertType      string    `json:"alert_type" firestore:"alertType"`
	Severity       Severity  `json:"severity" firestore:"severity"`
	Message        string    `json:"message" firestore:"message"`
	CurrentValue   *float64  `json:"current_value,omitempty" firestore:"currentValue,omitempty"`
	ThresholdValue *float64  `json:"threshold_value,omitempty" firestore:"thresholdValue,omitempty"`
	Acknowledged   bool      `json:"acknowledged" firestore:"acknowledged"`
	IsActive       bool      `json:"is_active" firestore:"isActive"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}
