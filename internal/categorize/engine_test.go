package categorize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/store"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, s store.Store) *Engine {
	t.Helper()
	e := NewEngine(s, nil)
	e.SetClock(func() time.Time { return testNow })
	return e
}

func TestDictionaryMatch(t *testing.T) {
	t.Run("exact when every token is a keyword", func(t *testing.T) {
		m, ok := DefaultDictionary.Match("enel bolletta")
		require.True(t, ok)
		assert.True(t, m.Exact)
		assert.Equal(t, "utilities", m.Category)
		assert.Equal(t, "energy", m.Subcategory)
		assert.Equal(t, 1.0, m.Confidence)
	})

	t.Run("multi-word keywords cover consecutive tokens", func(t *testing.T) {
		m, ok := DefaultDictionary.Match("agenzia entrate")
		require.True(t, ok)
		assert.True(t, m.Exact)
		assert.Equal(t, "taxes", m.Category)
	})

	t.Run("partial coverage falls back to fuzzy", func(t *testing.T) {
		m, ok := DefaultDictionary.Match("esselunga milano")
		require.True(t, ok)
		assert.False(t, m.Exact)
		assert.Equal(t, "groceries", m.Category)
		assert.InDelta(t, 0.75, m.Confidence, 1e-9)
	})

	t.Run("misspelled keyword matches fuzzily", func(t *testing.T) {
		m, ok := DefaultDictionary.Match("farmacai")
		require.True(t, ok)
		assert.False(t, m.Exact)
		assert.Equal(t, "healthcare", m.Category)
		assert.Less(t, m.Confidence, 0.75)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := DefaultDictionary.Match("xqzw")
		assert.False(t, ok)
		_, ok = DefaultDictionary.Match("")
		assert.False(t, ok)
	})
}

func TestScoreType(t *testing.T) {
	t.Run("invoice from a company on a weekday morning is business", func(t *testing.T) {
		in := TypeInput{
			RawDescription: "Fattura 123 ACME S.R.L.",
			Tokens:         Tokens("Fattura 123 ACME S.R.L."),
			Amount:         -2400,
			Date:           time.Date(2026, 6, 10, 10, 30, 0, 0, time.UTC),
		}
		got, conf := ScoreType(in).Decide()
		assert.Equal(t, model.TransactionTypeBusiness, got)
		assert.Equal(t, 1.0, conf)
	})

	t.Run("streaming on saturday night is personal", func(t *testing.T) {
		in := TypeInput{
			RawDescription: "NETFLIX.COM",
			Tokens:         Tokens("NETFLIX.COM"),
			Amount:         -12.99,
			Date:           time.Date(2026, 6, 13, 21, 0, 0, 0, time.UTC),
		}
		got, _ := ScoreType(in).Decide()
		assert.Equal(t, model.TransactionTypePersonal, got)
	})

	t.Run("vat number alone tips to business", func(t *testing.T) {
		in := TypeInput{RawDescription: "BONIFICO IT01234567890", Amount: -300.5}
		s := ScoreType(in)
		assert.Equal(t, weightCompanyID, s.Business)
	})

	t.Run("no evidence ties to personal", func(t *testing.T) {
		got, conf := ScoreType(TypeInput{}).Decide()
		assert.Equal(t, model.TransactionTypePersonal, got)
		assert.Equal(t, 0.5, conf)
	})

	t.Run("equal scores tie to personal", func(t *testing.T) {
		got, _ := TypeScore{Business: 2, Personal: 2}.Decide()
		assert.Equal(t, model.TransactionTypePersonal, got)
	})
}

func TestBayesPredictor(t *testing.T) {
	var samples []BayesSample
	for i := 0; i < 10; i++ {
		samples = append(samples,
			BayesSample{Tokens: []string{"consulenza", "cliente"}, Amount: -2000, Type: model.TransactionTypeBusiness},
			BayesSample{Tokens: []string{"pizza", "cinema"}, Amount: -30, Type: model.TransactionTypePersonal},
		)
	}
	p := NewBayesPredictor(samples)
	require.True(t, p.Trained())

	t.Run("known business words clear the threshold", func(t *testing.T) {
		got := p.Predict([]string{"consulenza"}, -2000)
		assert.Equal(t, model.TransactionTypeBusiness, got.Type)
		assert.True(t, got.Accepted())
	})

	t.Run("known personal words clear the threshold", func(t *testing.T) {
		got := p.Predict([]string{"pizza", "cinema"}, -25)
		assert.Equal(t, model.TransactionTypePersonal, got.Type)
		assert.True(t, got.Accepted())
	})

	t.Run("unseen words stay below the threshold", func(t *testing.T) {
		got := p.Predict([]string{"sconosciuto"}, -500)
		assert.False(t, got.Accepted())
	})

	t.Run("untrained predictor is neutral", func(t *testing.T) {
		empty := NewBayesPredictor(nil)
		assert.False(t, empty.Trained())
		got := empty.Predict([]string{"consulenza"}, -2000)
		assert.Equal(t, 0.5, got.Probability)
		assert.False(t, got.Accepted())
	})

	t.Run("one-sided history is untrained", func(t *testing.T) {
		oneSided := NewBayesPredictor(samples[:1])
		assert.False(t, oneSided.Trained())
	})
}

func TestCategorize(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword exact match with heuristic type", func(t *testing.T) {
		e := newTestEngine(t, store.NewMemoryStore())
		tx := &model.Transaction{
			Description: "ADDEBITO SDD ENEL ENERGIA BOLLETTA",
			Amount:      -80,
			Date:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		res := e.Categorize(ctx, tx)
		assert.Equal(t, "utilities", res.Category)
		assert.Equal(t, "energy", res.Subcategory)
		assert.Equal(t, MethodKeywordExact, res.Method)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Equal(t, model.TransactionTypePersonal, res.TransactionType)
		assert.True(t, res.IsPersonal)
		assert.False(t, res.IsBusiness)
	})

	t.Run("deterministic for unchanged state", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.SaveLearningRecord(ctx, &model.LearningRecord{
			NormalizedDescription: "studio bianchi consulenza",
			AssignedCategoryID:    "professional_services",
			Confidence:            0.9,
		}))
		e := newTestEngine(t, s)
		tx := &model.Transaction{Description: "Studio Bianchi consulenze", Amount: -450}
		first := e.Categorize(ctx, tx)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, e.Categorize(ctx, tx))
		}
	})

	t.Run("learned rule wins and counts the match", func(t *testing.T) {
		s := store.NewMemoryStore()
		rule := &model.CategorizationRule{
			RuleType:        model.RuleTypeLearned,
			Pattern:         "enel energia bolletta",
			CategoryID:      "home_utilities",
			TransactionType: model.TransactionTypeBusiness,
			Priority:        LearnedRulePriority,
			IsActive:        true,
		}
		require.NoError(t, s.UpsertCategorizationRule(ctx, rule))
		e := newTestEngine(t, s)

		res := e.Categorize(ctx, &model.Transaction{Description: "SDD ENEL ENERGIA BOLLETTA", Amount: -80})
		assert.Equal(t, "home_utilities", res.Category)
		assert.Equal(t, MethodLearnedRule, res.Method)
		assert.Equal(t, rule.ID, res.RuleID)
		assert.Equal(t, model.TransactionTypeBusiness, res.TransactionType)

		rules, err := s.ListCategorizationRules(ctx, true)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, 1, rules[0].MatchCount)
	})

	t.Run("pattern rules match as substrings", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.UpsertCategorizationRule(ctx, &model.CategorizationRule{
			RuleType:   model.RuleTypePattern,
			Pattern:    "aruba",
			CategoryID: "software",
			IsActive:   true,
		}))
		e := newTestEngine(t, s)
		res := e.Categorize(ctx, &model.Transaction{Description: "ARUBA SPA RINNOVO HOSTING DOMINIO", Amount: -49})
		assert.Equal(t, "software", res.Category)
		assert.Equal(t, MethodLearnedRule, res.Method)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("inactive rules are ignored", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.UpsertCategorizationRule(ctx, &model.CategorizationRule{
			RuleType:   model.RuleTypeLearned,
			Pattern:    "enel bolletta",
			CategoryID: "home_utilities",
		}))
		e := newTestEngine(t, s)
		res := e.Categorize(ctx, &model.Transaction{Description: "ENEL BOLLETTA", Amount: -80})
		assert.Equal(t, "utilities", res.Category)
	})

	t.Run("weak learned match is the fallback", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.SaveLearningRecord(ctx, &model.LearningRecord{
			NormalizedDescription: "xqzw zzyzx",
			AssignedCategoryID:    "investments",
			Confidence:            0.5,
		}))
		e := newTestEngine(t, s)
		res := e.Categorize(ctx, &model.Transaction{Description: "XQZW ZZYZX", Amount: -10})
		assert.Equal(t, "investments", res.Category)
		assert.Equal(t, MethodLearnedFallback, res.Method)
		assert.InDelta(t, 0.5, res.Confidence, 1e-9)
	})

	t.Run("nothing matches", func(t *testing.T) {
		e := newTestEngine(t, store.NewMemoryStore())
		res := e.Categorize(ctx, &model.Transaction{Description: "XQZW", Amount: -10})
		assert.Empty(t, res.Category)
		assert.Equal(t, model.TransactionTypeUnknown, res.TransactionType)
		assert.Zero(t, res.Confidence)
		assert.Equal(t, MethodNone, res.Method)
	})

	t.Run("store failure degrades to keywords", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockStore := store.NewMockStore(ctrl)
		mockStore.EXPECT().ListCategorizationRules(gomock.Any(), true).Return(nil, errors.New("unavailable")).AnyTimes()

		e := newTestEngine(t, mockStore)
		res := e.Categorize(ctx, &model.Transaction{Description: "ENEL BOLLETTA", Amount: -80})
		assert.Equal(t, "utilities", res.Category)
		assert.Equal(t, MethodKeywordExact, res.Method)
	})
}

func TestRuleCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newTestEngine(t, s)
	tx := &model.Transaction{Description: "ENEL BOLLETTA", Amount: -80}

	assert.Equal(t, "utilities", e.Categorize(ctx, tx).Category)

	require.NoError(t, s.UpsertCategorizationRule(ctx, &model.CategorizationRule{
		RuleType:   model.RuleTypeLearned,
		Pattern:    "enel bolletta",
		CategoryID: "home_utilities",
		IsActive:   true,
	}))
	assert.Equal(t, "utilities", e.Categorize(ctx, tx).Category, "cached rules are still in use")

	e.InvalidateRuleCache()
	assert.Equal(t, "home_utilities", e.Categorize(ctx, tx).Category)
}

func TestSetDictionaryWhileCategorizing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore())
	tx := &model.Transaction{Description: "ENEL BOLLETTA", Amount: -80}
	custom := Dictionary{{Category: "bills", Hint: model.TransactionTypePersonal, Keywords: []string{"enel", "bolletta"}}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := e.Categorize(ctx, tx)
				assert.Contains(t, []string{"utilities", "bills"}, res.Category)
			}
		}()
	}
	for j := 0; j < 50; j++ {
		if j%2 == 0 {
			e.SetDictionary(custom)
		} else {
			e.SetDictionary(DefaultDictionary)
		}
	}
	wg.Wait()

	e.SetDictionary(custom)
	assert.Equal(t, "bills", e.Categorize(ctx, tx).Category)
}
