package categorize

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/castlemilk/finintel/backend/internal/model"
)

// Heuristic weights for the business/personal decision.
const (
	weightKeyword      = 2.0
	weightCategoryHint = 1.5
	weightAmount       = 1.0
	weightRoundNumber  = 0.5
	weightTimeOfDay    = 0.5
	weightRecurring    = 0.5
	weightCompanyID    = 2.0

	businessAmountFloor = 1000.0
	personalAmountCeil  = 50.0
)

var (
	companyPattern = regexp.MustCompile(`\b(p\.?\s?iva|partita iva|vat|s\.?r\.?l\.?|s\.?p\.?a\.?|s\.?n\.?c\.?|s\.?a\.?s\.?|ltd|llc|gmbh|inc)\b`)
	vatPattern     = regexp.MustCompile(`\b(it)?\d{11}\b`)
)

var businessSignals = map[string]bool{
	"fattura": true, "fornitore": true, "fornitura": true, "consulenza": true, "commercialista": true,
	"srl": true, "spa": true, "f24": true, "inps": true, "inail": true, "iva": true, "cliente": true,
	"parcella": true, "professionale": true, "ufficio": true, "coworking": true, "hosting": true,
	"invoice": true, "supplier": true, "client": true, "wholesale": true, "b2b": true,
}

var personalSignals = map[string]bool{
	"supermercato": true, "farmacia": true, "ristorante": true, "pizzeria": true, "netflix": true,
	"spotify": true, "palestra": true, "abbigliamento": true, "cinema": true, "stipendio": true,
	"asilo": true, "scuola": true, "veterinario": true, "parrucchiere": true, "grocery": true,
	"gym": true, "pharmacy": true, "vacanza": true, "hotel": true,
}

// TypeScore is the outcome of the business/personal heuristic.
type TypeScore struct {
	Business float64
	Personal float64
}

// Decide returns the winning type and its share of the total score. Ties,
// including the empty score, go to personal at 0.5.
func (s TypeScore) Decide() (model.TransactionType, float64) {
	total := s.Business + s.Personal
	if total == 0 {
		return model.TransactionTypePersonal, 0.5
	}
	if s.Business > s.Personal {
		return model.TransactionTypeBusiness, s.Business / total
	}
	return model.TransactionTypePersonal, s.Personal / total
}

// TypeInput carries the signals the heuristic reads.
type TypeInput struct {
	RawDescription string
	Tokens         []string
	Amount         float64
	Date           time.Time
	Hint           model.TransactionType
	Recurring      bool
}

// ScoreType accumulates business and personal evidence for a transaction.
func ScoreType(in TypeInput) TypeScore {
	var s TypeScore

	var biz, pers bool
	for _, tok := range in.Tokens {
		biz = biz || businessSignals[tok]
		pers = pers || personalSignals[tok]
	}
	if biz {
		s.Business += weightKeyword
	}
	if pers {
		s.Personal += weightKeyword
	}

	switch in.Hint {
	case model.TransactionTypeBusiness:
		s.Business += weightCategoryHint
	case model.TransactionTypePersonal:
		s.Personal += weightCategoryHint
	}

	amount := math.Abs(in.Amount)
	switch {
	case amount >= businessAmountFloor:
		s.Business += weightAmount
	case amount > 0 && amount < personalAmountCeil:
		s.Personal += weightAmount
	}
	if amount >= 100 && math.Mod(amount, 100) == 0 {
		s.Business += weightRoundNumber
	}

	if hasTimeOfDay(in.Date) {
		if isOfficeHours(in.Date) {
			s.Business += weightTimeOfDay
		} else {
			s.Personal += weightTimeOfDay
		}
	}

	if in.Recurring {
		s.Business += weightRecurring
	}

	lower := strings.ToLower(in.RawDescription)
	if companyPattern.MatchString(lower) || vatPattern.MatchString(lower) {
		s.Business += weightCompanyID
	}
	return s
}

func hasTimeOfDay(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	h, m, sec := t.Clock()
	return h != 0 || m != 0 || sec != 0
}

func isOfficeHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= 9 && h < 18
}
