package categorize

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/store"
)

const (
	// LearnedSimilarityThreshold is the minimum similarity for a rule or
	// learning record to be considered at all.
	LearnedSimilarityThreshold = 0.7
	// LearnedAcceptThreshold is the combined confidence at which a learned
	// match short-circuits the pipeline.
	LearnedAcceptThreshold = 0.7
	// historyWindow bounds the transactions used to train the type predictor.
	historyWindow = 365 * 24 * time.Hour
	// recurringMinOccurrences counts earlier similar transactions needed to call one recurring.
	recurringMinOccurrences = 2
)

// Method names the pipeline stage that produced a result.
type Method string

const (
	MethodLearnedRule     Method = "learned_rule"
	MethodLearnedPattern  Method = "learned_pattern"
	MethodKeywordExact    Method = "keyword_exact"
	MethodKeywordFuzzy    Method = "keyword_fuzzy"
	MethodBayes           Method = "bayes"
	MethodLearnedFallback Method = "learned_fallback"
	MethodNone            Method = "none"
)

// Result is the categorization of one transaction. Category is empty when
// nothing matched.
type Result struct {
	Category        string                `json:"category"`
	Subcategory     string                `json:"subcategory,omitempty"`
	TransactionType model.TransactionType `json:"transaction_type"`
	IsPersonal      bool                  `json:"is_personal"`
	IsBusiness      bool                  `json:"is_business"`
	Confidence      float64               `json:"confidence"`
	TypeConfidence  float64               `json:"type_confidence"`
	Method          Method                `json:"method"`
	RuleID          string                `json:"rule_id,omitempty"`
}

func (r *Result) setType(t model.TransactionType, confidence float64) {
	r.TransactionType = t
	r.IsBusiness = t == model.TransactionTypeBusiness
	r.IsPersonal = t == model.TransactionTypePersonal
	r.TypeConfidence = confidence
}

// Apply writes the result onto a transaction.
func (r Result) Apply(tx *model.Transaction) {
	tx.Category = r.Category
	tx.Subcategory = r.Subcategory
	tx.SetType(r.TransactionType)
}

// learnedMatch is the best rule or learning record for a description.
type learnedMatch struct {
	category    string
	subcategory string
	txType      model.TransactionType
	confidence  float64
	method      Method
	ruleID      string
	priority    int
}

// historyEntry is one typed past transaction kept for recurrence checks.
type historyEntry struct {
	normalized string
	amount     float64
}

// snapshot is the cached learned state: rules, records and the type predictor.
type snapshot struct {
	rules   []*model.CategorizationRule
	records []*model.LearningRecord
	bayes   *BayesPredictor
	history []historyEntry
}

// Engine categorizes transactions and learns from feedback.
type Engine struct {
	store      store.Store
	dictionary Dictionary
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex // guards dictionary and cache
	cache *snapshot
}

// NewEngine creates a categorization engine over the given store.
func NewEngine(s store.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      s,
		dictionary: DefaultDictionary,
		logger:     logger.Named("categorize"),
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// SetDictionary replaces the keyword dictionary.
func (e *Engine) SetDictionary(d Dictionary) {
	e.mu.Lock()
	e.dictionary = d
	e.cache = nil
	e.mu.Unlock()
}

func (e *Engine) keywords() Dictionary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dictionary
}

// InvalidateRuleCache drops the cached rules, records and type predictor so
// the next categorization reloads them.
func (e *Engine) InvalidateRuleCache() {
	e.mu.Lock()
	e.cache = nil
	e.mu.Unlock()
}

// Categorize assigns a category and type to tx. It never fails: when the
// learned state cannot be loaded the keyword stages still run.
func (e *Engine) Categorize(ctx context.Context, tx *model.Transaction) Result {
	tokens := Tokens(tx.Description)
	normalized := strings.Join(tokens, " ")
	snap := e.snapshot(ctx)

	learned, hasLearned := snap.bestLearned(normalized)
	if hasLearned && learned.confidence >= LearnedAcceptThreshold {
		res := Result{
			Category:    learned.category,
			Subcategory: learned.subcategory,
			Confidence:  learned.confidence,
			Method:      learned.method,
			RuleID:      learned.ruleID,
		}
		if learned.txType == model.TransactionTypeBusiness || learned.txType == model.TransactionTypePersonal {
			res.setType(learned.txType, learned.confidence)
		} else {
			t, c := e.decideType(tx, tokens, normalized, model.TransactionTypeUnknown, snap)
			res.setType(t, c)
		}
		if learned.ruleID != "" {
			if err := e.store.IncrementRuleMatchCount(ctx, learned.ruleID); err != nil {
				e.logger.Warn("increment rule match count failed", zap.String("rule_id", learned.ruleID), zap.Error(err))
			}
		}
		return res
	}

	if kw, ok := e.keywords().Match(normalized); ok {
		res := Result{
			Category:    kw.Category,
			Subcategory: kw.Subcategory,
			Confidence:  kw.Confidence,
			Method:      MethodKeywordFuzzy,
		}
		if kw.Exact {
			res.Method = MethodKeywordExact
		}
		t, c := e.decideType(tx, tokens, normalized, kw.Hint, snap)
		res.setType(t, c)
		return res
	}

	if hasLearned {
		res := Result{
			Category:    learned.category,
			Subcategory: learned.subcategory,
			Confidence:  learned.confidence,
			Method:      MethodLearnedFallback,
		}
		switch learned.txType {
		case model.TransactionTypeBusiness, model.TransactionTypePersonal:
			res.setType(learned.txType, learned.confidence)
		default:
			if p := snap.bayes.Predict(tokens, tx.Amount); p.Accepted() {
				res.setType(p.Type, p.Probability)
			} else {
				res.setType(model.TransactionTypeUnknown, 0)
			}
		}
		return res
	}

	if p := snap.bayes.Predict(tokens, tx.Amount); p.Accepted() {
		res := Result{Confidence: p.Probability, Method: MethodBayes}
		res.setType(p.Type, p.Probability)
		return res
	}

	return Result{TransactionType: model.TransactionTypeUnknown, Method: MethodNone}
}

// decideType picks business or personal: the Bayes predictor when it is
// confident, otherwise the scored heuristic.
func (e *Engine) decideType(tx *model.Transaction, tokens []string, normalized string, hint model.TransactionType, snap *snapshot) (model.TransactionType, float64) {
	if p := snap.bayes.Predict(tokens, tx.Amount); p.Accepted() {
		return p.Type, p.Probability
	}
	score := ScoreType(TypeInput{
		RawDescription: tx.Description,
		Tokens:         tokens,
		Amount:         tx.Amount,
		Date:           tx.Date,
		Hint:           hint,
		Recurring:      snap.isRecurring(normalized, tx.Amount),
	})
	return score.Decide()
}

// snapshot returns the cached learned state, loading it on first use. Load
// failures are logged and yield an empty snapshot that is not cached.
func (e *Engine) snapshot(ctx context.Context) *snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache != nil {
		return e.cache
	}

	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		e.logger.Warn("loading learned state failed, using keywords only", zap.Error(err))
		return &snapshot{bayes: NewBayesPredictor(nil)}
	}
	e.cache = snap
	return snap
}

func (e *Engine) loadSnapshot(ctx context.Context) (*snapshot, error) {
	rules, err := e.store.ListCategorizationRules(ctx, true)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return store.RuleKey(rules[i].Pattern, rules[i].CategoryID) < store.RuleKey(rules[j].Pattern, rules[j].CategoryID)
	})

	records, err := e.store.ListLearningRecords(ctx, store.LearningFilter{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})

	end := e.now()
	start := end.Add(-historyWindow)
	txs, err := e.store.ListTransactions(ctx, store.TransactionFilter{Start: &start, End: &end})
	if err != nil {
		return nil, err
	}

	samples := make([]BayesSample, 0, len(txs))
	history := make([]historyEntry, 0, len(txs))
	for _, tx := range txs {
		tokens := Tokens(tx.Description)
		history = append(history, historyEntry{normalized: strings.Join(tokens, " "), amount: tx.AbsAmount()})
		t := typeOf(tx)
		if t == model.TransactionTypeUnknown {
			continue
		}
		samples = append(samples, BayesSample{Tokens: tokens, Amount: tx.Amount, Type: t})
	}

	e.logger.Debug("learned state loaded",
		zap.Int("rules", len(rules)),
		zap.Int("records", len(records)),
		zap.Int("samples", len(samples)))

	return &snapshot{
		rules:   rules,
		records: records,
		bayes:   NewBayesPredictor(samples),
		history: history,
	}, nil
}

// bestLearned scans rules and learning records for the highest combined
// confidence at or above LearnedSimilarityThreshold similarity. Rules win
// ties over records, and earlier entries win ties within each list.
func (s *snapshot) bestLearned(normalized string) (learnedMatch, bool) {
	if normalized == "" {
		return learnedMatch{}, false
	}
	var best learnedMatch
	found := false
	consider := func(m learnedMatch) {
		if !found || m.confidence > best.confidence {
			best = m
			found = true
		}
	}

	for _, r := range s.rules {
		sim := ruleSimilarity(normalized, r)
		if sim < LearnedSimilarityThreshold {
			continue
		}
		consider(learnedMatch{
			category:    r.CategoryID,
			subcategory: r.SubcategoryID,
			txType:      r.TransactionType,
			confidence:  sim,
			method:      MethodLearnedRule,
			ruleID:      r.ID,
			priority:    r.Priority,
		})
	}
	for _, rec := range s.records {
		sim := Similarity(normalized, rec.NormalizedDescription)
		if sim < LearnedSimilarityThreshold {
			continue
		}
		consider(learnedMatch{
			category:   rec.AssignedCategoryID,
			txType:     rec.TransactionType,
			confidence: sim * rec.Confidence,
			method:     MethodLearnedPattern,
		})
	}
	return best, found
}

// ruleSimilarity treats pattern rules as substrings and learned rules as
// whole-description patterns.
func ruleSimilarity(normalized string, r *model.CategorizationRule) float64 {
	if r.RuleType == model.RuleTypePattern && r.Pattern != "" && strings.Contains(normalized, r.Pattern) {
		return 1.0
	}
	return Similarity(normalized, r.Pattern)
}

// isRecurring reports whether at least recurringMinOccurrences past
// transactions look like the same charge.
func (s *snapshot) isRecurring(normalized string, amount float64) bool {
	if normalized == "" {
		return false
	}
	abs := math.Abs(amount)
	n := 0
	for _, h := range s.history {
		if abs > 0 && math.Abs(h.amount-abs)/abs > 0.05 {
			continue
		}
		if Similarity(normalized, h.normalized) >= PromotionSimilarity {
			n++
			if n >= recurringMinOccurrences {
				return true
			}
		}
	}
	return false
}

func typeOf(tx *model.Transaction) model.TransactionType {
	switch {
	case tx.IsBusiness || tx.TransactionType == model.TransactionTypeBusiness:
		return model.TransactionTypeBusiness
	case tx.IsPersonal || tx.TransactionType == model.TransactionTypePersonal:
		return model.TransactionTypePersonal
	}
	return model.TransactionTypeUnknown
}
