package predict

import (
	"fmt"
	"math"

	"github.com/castlemilk/finintel/backend/internal/money"
	"github.com/castlemilk/finintel/backend/internal/stats"
)

// Scenario names.
const (
	ScenarioOptimistic  = "optimistic"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
)

// Scenario is one what-if outcome for the forecast horizon.
type Scenario struct {
	Name      string  `json:"name"`
	Income    float64 `json:"income"`
	Expenses  float64 `json:"expenses"`
	Cashflow  float64 `json:"cashflow"`
	Rationale string  `json:"rationale"`
}

// Scenarios groups the three outcomes. Pessimistic cash flow never exceeds
// realistic, which never exceeds optimistic.
type Scenarios struct {
	Optimistic  Scenario `json:"optimistic"`
	Realistic   Scenario `json:"realistic"`
	Pessimistic Scenario `json:"pessimistic"`
}

// BuildScenarios moves income and expenses k standard deviations (scaled by
// the horizon) in the favourable and unfavourable directions. The extremes
// match the forecast intervals for the same k.
func BuildScenarios(income, expenses Forecast, k float64, f *money.Formatter) Scenarios {
	incBase, incSigma := income.basis()
	expBase, expSigma := expenses.basis()
	incSpread := k * incSigma * income.MonthsAhead
	expSpread := k * expSigma * expenses.MonthsAhead

	scenario := func(name string, inc, exp float64, rationale string) Scenario {
		inc, exp = stats.Round2(math.Max(0, inc)), stats.Round2(math.Max(0, exp))
		return Scenario{
			Name:      name,
			Income:    inc,
			Expenses:  exp,
			Cashflow:  stats.Round2(inc - exp),
			Rationale: rationale,
		}
	}

	return Scenarios{
		Optimistic: scenario(ScenarioOptimistic, incBase+incSpread, expBase-expSpread,
			fmt.Sprintf("Income %s above and expenses %s below the baseline, within historical volatility",
				f.Format(incSpread), f.Format(expSpread))),
		Realistic: scenario(ScenarioRealistic, income.Predicted, expenses.Predicted,
			"Current trend and seasonality continue unchanged"),
		Pessimistic: scenario(ScenarioPessimistic, incBase-incSpread, expBase+expSpread,
			fmt.Sprintf("Income %s below and expenses %s above the baseline, within historical volatility",
				f.Format(incSpread), f.Format(expSpread))),
	}
}
