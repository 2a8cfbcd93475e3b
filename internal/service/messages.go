package service

import (
	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/model"
)

// DateRange is an inclusive range of calendar days formatted YYYY-MM-DD.
// Missing bounds default to the 30 days ending today.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type GetReportRequest struct {
	PeriodDays   int  `json:"period_days"`
	ForceRefresh bool `json:"force_refresh"`
}

type InvalidateCacheRequest struct{}

type InvalidateCacheResponse struct{}

// CategorizeRequest names a stored transaction or carries one inline.
type CategorizeRequest struct {
	TransactionID string             `json:"transaction_id,omitempty"`
	Transaction   *model.Transaction `json:"transaction,omitempty"`
}

type ApplyCategorizationRequest struct {
	Range DateRange `json:"range"`
}

type LearnFromTransactionRequest struct {
	TransactionID string             `json:"transaction_id,omitempty"`
	Transaction   *model.Transaction `json:"transaction,omitempty"`
	CategoryID    string             `json:"category_id"`
	IsBusiness    bool               `json:"is_business"`
}

type LearnFromCorrectionRequest struct {
	TransactionID string `json:"transaction_id"`
	OldCategory   string `json:"old_category"`
	NewCategory   string `json:"new_category"`
}

type GetPredictionsRequest struct {
	DaysAhead int `json:"days_ahead"`
}

type GetPeriodStatsRequest struct {
	Range     DateRange             `json:"range"`
	AccountID string                `json:"account_id,omitempty"`
	Type      model.TransactionType `json:"type,omitempty"`
}

type GetPeriodStatsResponse struct {
	Start              string                          `json:"start"`
	End                string                          `json:"end"`
	Stats              aggregate.PeriodStats           `json:"stats"`
	NetCashflow        float64                         `json:"net_cashflow"`
	Categories         []aggregate.CategoryStats       `json:"categories"`
	TopExpenses        []aggregate.CategoryStats       `json:"top_expenses"`
	BusinessVsPersonal aggregate.BusinessPersonalSplit `json:"business_vs_personal"`
}

type GetTrendRequest struct {
	AccountID string                `json:"account_id,omitempty"`
	Type      model.TransactionType `json:"type,omitempty"`
}

type GetTrendResponse struct {
	Months []aggregate.MonthlyTrend `json:"months"`
}

type ListAlertsRequest struct {
	UnacknowledgedOnly bool `json:"unacknowledged_only"`
}

type ListAlertsResponse struct {
	Alerts []*model.Alert `json:"alerts"`
}

type AcknowledgeAlertRequest struct {
	ID string `json:"id"`
}

type AcknowledgeAlertResponse struct{}
