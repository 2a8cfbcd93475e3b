package categorize

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/store"
)

const (
	// ManualConfidence is the confidence of a new manual learning record.
	ManualConfidence = 0.9
	// ReinforceStep is added to similar records of the same category.
	ReinforceStep = 0.05
	// CorrectionPenalty is removed from similar records of a wrong category.
	CorrectionPenalty = 0.1
	// MinRecordConfidence floors penalized records.
	MinRecordConfidence = 0.1
	// PromotionSimilarity is the similarity at which two records corroborate each other.
	PromotionSimilarity = 0.8
	// PromotionMinRecords is the corroborating record count needed for a rule.
	PromotionMinRecords = 5
	// PromotionMinConfidence is the average confidence needed for a rule.
	PromotionMinConfidence = 0.9
	// LearnedRulePriority is the priority of promoted rules.
	LearnedRulePriority = 10

	confidenceEpsilon = 1e-9
)

// ErrEmptyDescription is returned when a description has no significant tokens.
var ErrEmptyDescription = errors.New("description has no significant keywords")

// LearnResult reports what a learning call changed.
type LearnResult struct {
	Record     *model.LearningRecord     `json:"record"`
	Reinforced int                       `json:"reinforced"`
	Penalized  int                       `json:"penalized,omitempty"`
	Rule       *model.CategorizationRule `json:"rule,omitempty"`
}

// Promoted reports whether the call created or refreshed a learned rule.
func (r LearnResult) Promoted() bool { return r.Rule != nil }

// LearnFromTransaction records a manual category assignment, reinforces
// similar records of the same category and promotes the pattern to a rule
// once enough corroborating evidence exists. The transaction is updated with
// the assignment when it carries an ID.
func (e *Engine) LearnFromTransaction(ctx context.Context, tx *model.Transaction, categoryID string, isBusiness bool) (LearnResult, error) {
	if categoryID == "" {
		return LearnResult{}, fmt.Errorf("learn: category is required")
	}
	normalized := Normalize(tx.Description)
	if normalized == "" {
		return LearnResult{}, ErrEmptyDescription
	}
	txType := model.TransactionTypePersonal
	if isBusiness {
		txType = model.TransactionTypeBusiness
	}

	existing, err := e.store.ListLearningRecords(ctx, store.LearningFilter{CategoryID: categoryID})
	if err != nil {
		return LearnResult{}, fmt.Errorf("learn: list records: %w", err)
	}

	var result LearnResult
	corroborating := make([]*model.LearningRecord, 0, len(existing)+1)
	for _, rec := range existing {
		if Similarity(normalized, rec.NormalizedDescription) < PromotionSimilarity {
			continue
		}
		rec.Confidence = math.Min(1.0, rec.Confidence+ReinforceStep)
		if err := e.store.UpdateLearningRecord(ctx, rec); err != nil {
			return LearnResult{}, fmt.Errorf("learn: reinforce record %s: %w", rec.ID, err)
		}
		result.Reinforced++
		corroborating = append(corroborating, rec)
	}

	record := &model.LearningRecord{
		ID:                    uuid.New().String(),
		TransactionID:         tx.ID,
		OriginalDescription:   tx.Description,
		NormalizedDescription: normalized,
		AssignedCategoryID:    categoryID,
		TransactionType:       txType,
		AssignedBy:            model.AssignedByManual,
		Confidence:            ManualConfidence,
		KeywordsExtracted:     ExtractKeywords(normalized),
		CreatedAt:             e.now(),
	}
	if err := e.store.SaveLearningRecord(ctx, record); err != nil {
		return LearnResult{}, fmt.Errorf("learn: save record: %w", err)
	}
	result.Record = record
	corroborating = append(corroborating, record)

	if shouldPromote(corroborating) {
		rule := &model.CategorizationRule{
			ID:              uuid.New().String(),
			RuleType:        model.RuleTypeLearned,
			Pattern:         normalized,
			CategoryID:      categoryID,
			TransactionType: txType,
			Priority:        LearnedRulePriority,
			IsActive:        true,
			CreatedAt:       e.now(),
		}
		if err := e.store.UpsertCategorizationRule(ctx, rule); err != nil {
			return LearnResult{}, fmt.Errorf("learn: promote rule: %w", err)
		}
		result.Rule = rule
		e.logger.Info("pattern promoted to rule",
			zap.String("pattern", normalized),
			zap.String("category", categoryID),
			zap.Int("records", len(corroborating)))
	}

	if err := e.assign(ctx, tx, categoryID, txType); err != nil {
		return LearnResult{}, err
	}

	e.InvalidateRuleCache()
	return result, nil
}

// LearnFromCorrection learns newCategory for the transaction and penalizes
// similar records that pointed to oldCategory.
func (e *Engine) LearnFromCorrection(ctx context.Context, transactionID, oldCategory, newCategory string) (LearnResult, error) {
	tx, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return LearnResult{}, fmt.Errorf("correction: %w", err)
	}

	result, err := e.LearnFromTransaction(ctx, tx, newCategory, typeOf(tx) == model.TransactionTypeBusiness)
	if err != nil {
		return LearnResult{}, err
	}

	if oldCategory != "" && oldCategory != newCategory {
		wrong, err := e.store.ListLearningRecords(ctx, store.LearningFilter{CategoryID: oldCategory})
		if err != nil {
			return result, fmt.Errorf("correction: list records: %w", err)
		}
		normalized := result.Record.NormalizedDescription
		for _, rec := range wrong {
			if Similarity(normalized, rec.NormalizedDescription) < PromotionSimilarity {
				continue
			}
			rec.Confidence = math.Max(MinRecordConfidence, rec.Confidence-CorrectionPenalty)
			if err := e.store.UpdateLearningRecord(ctx, rec); err != nil {
				return result, fmt.Errorf("correction: penalize record %s: %w", rec.ID, err)
			}
			result.Penalized++
		}
	}

	e.logger.Info("correction learned",
		zap.String("transaction_id", transactionID),
		zap.String("old_category", oldCategory),
		zap.String("new_category", newCategory),
		zap.Int("penalized", result.Penalized))

	e.InvalidateRuleCache()
	return result, nil
}

// shouldPromote reports whether a set of corroborating records is strong
// enough to become a rule.
func shouldPromote(records []*model.LearningRecord) bool {
	if len(records) < PromotionMinRecords {
		return false
	}
	var sum float64
	for _, r := range records {
		sum += r.Confidence
	}
	return sum/float64(len(records)) >= PromotionMinConfidence-confidenceEpsilon
}

// assign persists the learned category on the transaction. Transactions that
// are not stored are left alone.
func (e *Engine) assign(ctx context.Context, tx *model.Transaction, categoryID string, t model.TransactionType) error {
	tx.Category = categoryID
	tx.SetType(t)
	if tx.ID == "" {
		return nil
	}
	if err := e.store.UpdateTransaction(ctx, tx); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("learn: update transaction: %w", err)
	}
	return nil
}
