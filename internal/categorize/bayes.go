package categorize

import (
	"math"

	"github.com/jbrukh/bayesian"

	"github.com/castlemilk/finintel/backend/internal/model"
)

// BayesAcceptThreshold is the posterior a class needs before its type is used.
const BayesAcceptThreshold = 0.8

const (
	classBusiness bayesian.Class = "business"
	classPersonal bayesian.Class = "personal"
)

// amountBuckets are the upper bounds of the amount magnitude bins; the last
// bin is open-ended.
var amountBuckets = []float64{50, 200, 1000, 5000}

// BayesSample is one historical transaction with a known type.
type BayesSample struct {
	Tokens []string
	Amount float64
	Type   model.TransactionType
}

// BayesPrediction is the outcome of a Bayes lookup. Trained is false when one
// of the two populations has no data, in which case Probability is 0.5.
type BayesPrediction struct {
	Type        model.TransactionType
	Probability float64
	Trained     bool
}

// Accepted reports whether the prediction clears BayesAcceptThreshold.
func (p BayesPrediction) Accepted() bool {
	return p.Trained && p.Probability >= BayesAcceptThreshold
}

// BayesPredictor combines a multinomial word model over description tokens
// with a Laplace-smoothed amount-magnitude likelihood.
type BayesPredictor struct {
	words   *bayesian.Classifier
	buckets map[bayesian.Class][]int
	totals  map[bayesian.Class]int
}

// NewBayesPredictor trains a predictor on samples. Samples of unknown type are ignored.
func NewBayesPredictor(samples []BayesSample) *BayesPredictor {
	p := &BayesPredictor{
		words: bayesian.NewClassifier(classBusiness, classPersonal),
		buckets: map[bayesian.Class][]int{
			classBusiness: make([]int, len(amountBuckets)+1),
			classPersonal: make([]int, len(amountBuckets)+1),
		},
		totals: map[bayesian.Class]int{},
	}
	for _, s := range samples {
		class, ok := classOf(s.Type)
		if !ok {
			continue
		}
		if len(s.Tokens) > 0 {
			p.words.Learn(s.Tokens, class)
		}
		p.buckets[class][bucketOf(s.Amount)]++
		p.totals[class]++
	}
	return p
}

// Trained reports whether both populations contributed words.
func (p *BayesPredictor) Trained() bool {
	counts := p.words.WordCount()
	return len(counts) == 2 && counts[0] > 0 && counts[1] > 0
}

// Predict scores a description and amount against the two populations.
func (p *BayesPredictor) Predict(tokens []string, amount float64) BayesPrediction {
	if !p.Trained() || len(tokens) == 0 {
		return BayesPrediction{Type: model.TransactionTypeUnknown, Probability: 0.5}
	}

	scores, _, _ := p.words.ProbScores(tokens)
	bucket := bucketOf(amount)
	business := scores[0] * p.amountLikelihood(classBusiness, bucket)
	personal := scores[1] * p.amountLikelihood(classPersonal, bucket)

	total := business + personal
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return BayesPrediction{Type: model.TransactionTypeUnknown, Probability: 0.5, Trained: true}
	}
	pb := business / total
	if pb > 0.5 {
		return BayesPrediction{Type: model.TransactionTypeBusiness, Probability: pb, Trained: true}
	}
	return BayesPrediction{Type: model.TransactionTypePersonal, Probability: 1 - pb, Trained: true}
}

func (p *BayesPredictor) amountLikelihood(class bayesian.Class, bucket int) float64 {
	return float64(p.buckets[class][bucket]+1) / float64(p.totals[class]+len(amountBuckets)+1)
}

func classOf(t model.TransactionType) (bayesian.Class, bool) {
	switch t {
	case model.TransactionTypeBusiness:
		return classBusiness, true
	case model.TransactionTypePersonal:
		return classPersonal, true
	}
	return "", false
}

func bucketOf(amount float64) int {
	a := math.Abs(amount)
	for i, upper := range amountBuckets {
		if a < upper {
			return i
		}
	}
	return len(amountBuckets)
}
