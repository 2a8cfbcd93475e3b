package categorize

import (
	"strings"

	"github.com/castlemilk/finintel/backend/internal/model"
)

const (
	// KeywordExactThreshold is the minimum share of description tokens covered by
	// one category's keywords for an exact dictionary match.
	KeywordExactThreshold = 0.8
	// KeywordFuzzyThreshold is the minimum token/keyword similarity for a fuzzy match.
	KeywordFuzzyThreshold = 0.7
	// fuzzyConfidenceWeight discounts fuzzy matches below exact ones.
	fuzzyConfidenceWeight = 0.75
)

// CategoryKeywords ties a category (and optional subcategory) to its keywords.
// Hint is the type the category usually implies, or unknown when it can be either.
type CategoryKeywords struct {
	Category    string
	Subcategory string
	Keywords    []string
	Hint        model.TransactionType
}

// Dictionary is an ordered keyword dictionary; earlier entries win ties.
type Dictionary []CategoryKeywords

// KeywordMatch is the outcome of a dictionary lookup.
type KeywordMatch struct {
	Category    string
	Subcategory string
	Confidence  float64
	Exact       bool
	Keyword     string
	Hint        model.TransactionType
}

// DefaultDictionary is the built-in keyword dictionary.
var DefaultDictionary = Dictionary{
	{Category: "utilities", Subcategory: "energy", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"enel", "bolletta", "luce", "gas", "energia", "edison", "eni plenitude", "hera", "a2a", "iren", "sorgenia", "electricity", "energy"}},
	{Category: "utilities", Subcategory: "water", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"acqua", "acquedotto", "water"}},
	{Category: "utilities", Subcategory: "telecom", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"tim", "telecom", "vodafone", "windtre", "wind", "fastweb", "iliad", "internet", "fibra", "mobile", "telefono"}},
	{Category: "rent", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"affitto", "canone locazione", "locazione", "rent", "condominio"}},
	{Category: "groceries", Hint: model.TransactionTypePersonal,
		Keywords: []string{"esselunga", "coop", "conad", "carrefour", "lidl", "eurospin", "pam", "despar", "supermercato", "market", "alimentari", "grocery"}},
	{Category: "restaurants", Hint: model.TransactionTypePersonal,
		Keywords: []string{"ristorante", "pizzeria", "trattoria", "bar", "caffe", "osteria", "restaurant", "cafe", "mcdonalds", "deliveroo", "glovo", "just eat"}},
	{Category: "transport", Subcategory: "fuel", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"carburante", "benzina", "diesel", "eni", "q8", "tamoil", "ip", "esso", "shell", "fuel"}},
	{Category: "transport", Subcategory: "travel", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"trenitalia", "italo", "autostrade", "telepass", "ryanair", "easyjet", "alitalia", "ita airways", "taxi", "uber", "parcheggio", "parking"}},
	{Category: "software", Hint: model.TransactionTypeBusiness,
		Keywords: []string{"adobe", "microsoft", "google workspace", "aws", "amazon web services", "github", "atlassian", "slack", "dropbox", "aruba", "register", "hosting", "dominio", "saas"}},
	{Category: "office", Hint: model.TransactionTypeBusiness,
		Keywords: []string{"cancelleria", "ufficio", "toner", "stampante", "office", "coworking"}},
	{Category: "professional_services", Hint: model.TransactionTypeBusiness,
		Keywords: []string{"commercialista", "consulenza", "notaio", "avvocato", "studio", "parcella", "consulting", "accountant"}},
	{Category: "taxes", Hint: model.TransactionTypeBusiness,
		Keywords: []string{"f24", "inps", "inail", "agenzia entrate", "iva", "irpef", "tributi", "imposta", "tasse", "tax"}},
	{Category: "bank_fees", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"commissioni", "commissione", "canone conto", "spese conto", "bollo", "imposta bollo", "interessi", "fee", "fees"}},
	{Category: "insurance", Hint: model.TransactionTypeUnknown,
		Keywords: []string{"assicurazione", "polizza", "allianz", "generali", "unipol", "insurance"}},
	{Category: "healthcare", Hint: model.TransactionTypePersonal,
		Keywords: []string{"farmacia", "medico", "dentista", "ospedale", "clinica", "ticket sanitario", "pharmacy"}},
	{Category: "entertainment", Hint: model.TransactionTypePersonal,
		Keywords: []string{"netflix", "spotify", "disney", "dazn", "sky", "cinema", "teatro", "prime video", "playstation", "steam"}},
	{Category: "shopping", Hint: model.TransactionTypePersonal,
		Keywords: []string{"amazon", "zalando", "ikea", "decathlon", "mediaworld", "unieuro", "abbigliamento", "ebay"}},
	{Category: "salary", Hint: model.TransactionTypePersonal,
		Keywords: []string{"stipendio", "emolumenti", "salario", "salary", "payroll", "cedolino"}},
	{Category: "sales", Hint: model.TransactionTypeBusiness,
		Keywords: []string{"fattura", "fatt", "saldo fattura", "acconto", "invoice", "compenso", "onorario"}},
}

// Match looks up a normalized description. An exact match covers at least
// KeywordExactThreshold of the tokens; otherwise the best fuzzy token/keyword
// similarity at or above KeywordFuzzyThreshold is returned with a discounted confidence.
func (d Dictionary) Match(normalized string) (KeywordMatch, bool) {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return KeywordMatch{}, false
	}

	var best KeywordMatch
	bestCoverage := 0.0
	for _, entry := range d {
		covered, keyword := coverage(tokens, entry.Keywords)
		if covered == 0 {
			continue
		}
		score := float64(covered) / float64(len(tokens))
		if score > bestCoverage {
			bestCoverage = score
			best = KeywordMatch{
				Category:    entry.Category,
				Subcategory: entry.Subcategory,
				Confidence:  score,
				Exact:       true,
				Keyword:     keyword,
				Hint:        entry.Hint,
			}
		}
	}
	if bestCoverage >= KeywordExactThreshold {
		return best, true
	}

	var fuzzy KeywordMatch
	bestSim := 0.0
	for _, entry := range d {
		for _, kw := range entry.Keywords {
			for _, candidate := range candidates(tokens, kw) {
				sim := Similarity(candidate, kw)
				if sim > bestSim {
					bestSim = sim
					fuzzy = KeywordMatch{
						Category:    entry.Category,
						Subcategory: entry.Subcategory,
						Confidence:  sim * fuzzyConfidenceWeight,
						Keyword:     kw,
						Hint:        entry.Hint,
					}
				}
			}
		}
	}
	if bestSim >= KeywordFuzzyThreshold {
		return fuzzy, true
	}
	return KeywordMatch{}, false
}

// coverage counts the tokens covered by any keyword; multi-word keywords cover
// consecutive tokens. It also returns the first keyword that matched.
func coverage(tokens []string, keywords []string) (int, string) {
	covered := make([]bool, len(tokens))
	first := ""
	for _, kw := range keywords {
		parts := strings.Fields(kw)
		for i := 0; i+len(parts) <= len(tokens); i++ {
			if !equalAt(tokens, i, parts) {
				continue
			}
			for j := range parts {
				covered[i+j] = true
			}
			if first == "" {
				first = kw
			}
		}
	}
	n := 0
	for _, c := range covered {
		if c {
			n++
		}
	}
	return n, first
}

func equalAt(tokens []string, i int, parts []string) bool {
	for j, p := range parts {
		if tokens[i+j] != p {
			return false
		}
	}
	return true
}

// candidates returns the token windows of the same width as kw.
func candidates(tokens []string, kw string) []string {
	width := len(strings.Fields(kw))
	if width <= 1 {
		return tokens
	}
	var out []string
	for i := 0; i+width <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+width], " "))
	}
	return out
}
