// Package categorize assigns categories and business/personal types to
// transactions and learns from manual assignments and corrections.
package categorize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxKeywords caps the keywords stored on a learning record.
const MaxKeywords = 10

// stopWords are bank statement boilerplate that carry no merchant signal.
var stopWords = map[string]bool{
	// payment boilerplate (it)
	"pagamento": true, "pagam": true, "pag": true, "bonifico": true, "bonif": true, "addebito": true,
	"accredito": true, "carta": true, "pos": true, "sdd": true, "sepa": true, "disposizione": true,
	"favore": true, "ordinante": true, "beneficiario": true, "rif": true, "riferimento": true,
	"operazione": true, "op": true, "data": true, "ora": true, "valuta": true, "presso": true,
	"num": true, "nr": true, "n": true, "cro": true, "trn": true, "iban": true, "mandato": true,
	"debitore": true, "creditore": true, "causale": true, "vs": true, "ns": true,
	// articles and prepositions (it)
	"il": true, "lo": true, "la": true, "i": true, "gli": true, "le": true, "di": true, "del": true,
	"della": true, "dei": true, "delle": true, "da": true, "dal": true, "in": true, "con": true,
	"su": true, "per": true, "tra": true, "fra": true, "a": true, "al": true, "e": true,
	// payment boilerplate (en)
	"payment": true, "transfer": true, "card": true, "debit": true, "credit": true, "direct": true,
	"purchase": true, "ref": true, "reference": true, "transaction": true, "trx": true, "txn": true,
	"value": true, "date": true, "to": true, "from": true, "the": true, "of": true, "and": true,
	"for": true, "at": true, "on": true, "via": true, "no": true,
	// months
	"gennaio": true, "febbraio": true, "marzo": true, "aprile": true, "maggio": true, "giugno": true,
	"luglio": true, "agosto": true, "settembre": true, "ottobre": true, "novembre": true, "dicembre": true,
	"gen": true, "feb": true, "mar": true, "apr": true, "mag": true, "giu": true, "lug": true, "ago": true,
	"set": true, "ott": true, "nov": true, "dic": true,
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
	"jan": true, "jun": true, "jul": true, "aug": true, "sep": true, "oct": true, "dec": true,
}

// IsStopWord reports whether w is statement boilerplate.
func IsStopWord(w string) bool { return stopWords[w] }

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases a description, folds accents, replaces punctuation with
// spaces and drops stop words and purely numeric tokens.
func Normalize(description string) string {
	return strings.Join(Tokens(description), " ")
}

// Tokens returns the significant tokens of a description in order.
func Tokens(description string) []string {
	folded, _, err := transform.String(stripMarks, strings.ToLower(description))
	if err != nil {
		folded = strings.ToLower(description)
	}

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopWords[f] || isNumeric(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// ExtractKeywords returns up to MaxKeywords distinct tokens longer than three
// characters from an already normalized description.
func ExtractKeywords(normalized string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, tok := range strings.Fields(normalized) {
		if len([]rune(tok)) <= 3 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
