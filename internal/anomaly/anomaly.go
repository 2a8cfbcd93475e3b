// Package anomaly flags statistically unusual expense, income and cash-flow
// values, overdue invoices and outlier transactions.
package anomaly

import (
	"math"
	"sort"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

// Type identifies the detection that produced an anomaly.
type Type string

const (
	TypeExpense            Type = "expense_anomaly"
	TypeIncome             Type = "income_anomaly"
	TypeIncomeShortfall    Type = "income_shortfall"
	TypeCategoryExpense    Type = "category_expense_anomaly"
	TypeCashFlowNegative   Type = "cash_flow_negative"
	TypeOverdueInvoices    Type = "overdue_invoices"
	TypeTransactionOutlier Type = "transaction_outlier"
)

// Detection methods reported on each anomaly.
const (
	MethodZScore    = "zscore"
	MethodIQR       = "iqr"
	MethodRatio     = "ratio"
	MethodThreshold = "threshold"
)

const (
	// MinIQRSamples is the history length needed before IQR fences apply.
	MinIQRSamples = 4
	// CategoryRatioLimit flags a category spending more than this multiple of its expected value.
	CategoryRatioLimit = 2.0
	// OverdueHighAmount is the overdue total above which invoice anomalies are high.
	OverdueHighAmount = 5000.0
	// OutlierMinAmount is the smallest amount a transaction outlier can have.
	OutlierMinAmount = 500.0
	// OutlierMedianFactor and OutlierHighFactor scale the median expense.
	OutlierMedianFactor = 3.0
	OutlierHighFactor   = 5.0

	invoiceConfidence  = 0.9
	cashFlowConfidence = 0.85
	maxConfidence      = 0.95
	fullSampleCount    = 10.0
)

// Anomaly is one flagged value. Optional statistics are nil when the
// detection does not compute them.
type Anomaly struct {
	Type             Type           `json:"type"`
	Category         string         `json:"category,omitempty"`
	Severity         model.Severity `json:"severity"`
	Confidence       float64        `json:"confidence"`
	Message          string         `json:"message"`
	Method           string         `json:"method"`
	CurrentValue     float64        `json:"current_value"`
	HistoricalMean   *float64       `json:"historical_mean,omitempty"`
	HistoricalStdDev *float64       `json:"historical_std_dev,omitempty"`
	ZScore           *float64       `json:"z_score,omitempty"`
	ExpectedValue    *float64       `json:"expected_value,omitempty"`
	TransactionID    string         `json:"transaction_id,omitempty"`
	Date             *time.Time     `json:"date,omitempty"`
	InvoiceCount     int            `json:"invoice_count,omitempty"`
}

// SeverityForZ maps |z| to a severity tier: >=3 critical, >=2.5 high,
// >=2 medium, otherwise low.
func SeverityForZ(z float64) model.Severity {
	az := math.Abs(z)
	switch {
	case az >= 3:
		return model.SeverityCritical
	case az >= 2.5:
		return model.SeverityHigh
	case az >= 2:
		return model.SeverityMedium
	}
	return model.SeverityLow
}

// Confidence rewards both deviation and sample size:
// min(0.95, |z|/3) * min(1, n/10).
func Confidence(z float64, samples int) float64 {
	return math.Min(maxConfidence, math.Abs(z)/3) * math.Min(1, float64(samples)/fullSampleCount)
}

// Evaluation is the statistical verdict on one value against its history.
type Evaluation struct {
	Mean     float64
	StdDev   float64
	Z        float64
	High     bool
	Low      bool
	Method   string
	Severity model.Severity
}

// Evaluate compares current with history using the z-score and, when at
// least MinIQRSamples points exist, the IQR fences. High and Low report
// which side was exceeded.
func Evaluate(current float64, history []float64, zThreshold, iqrFactor float64) Evaluation {
	ev := Evaluation{
		Mean:   stats.Mean(history),
		StdDev: stats.SampleStdDev(history),
	}
	ev.Z = stats.ZScore(current, ev.Mean, ev.StdDev)
	ev.Severity = SeverityForZ(ev.Z)

	switch {
	case ev.Z >= zThreshold:
		ev.High, ev.Method = true, MethodZScore
	case ev.Z <= -zThreshold:
		ev.Low, ev.Method = true, MethodZScore
	}
	if ev.Method == "" && len(history) >= MinIQRSamples {
		lower, upper := stats.Fences(history, iqrFactor)
		switch {
		case current > upper:
			ev.High, ev.Method = true, MethodIQR
		case current < lower:
			ev.Low, ev.Method = true, MethodIQR
		}
	}
	return ev
}

// Sort orders anomalies by severity then confidence, both descending.
func Sort(items []Anomaly) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Severity.Rank(), items[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Confidence > items[j].Confidence
	})
}
