package categorize

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// AutoLearnConfidence is the confidence at which an automatic assignment is
// recorded as learning evidence.
const AutoLearnConfidence = 0.9

// BatchResult counts the outcome of a batch categorization.
type BatchResult struct {
	Processed   int `json:"processed"`
	Categorized int `json:"categorized"`
	Learned     int `json:"learned"`
	Failed      int `json:"failed"`
}

// ApplyToUncategorized categorizes every uncategorized transaction in
// [start, end] and persists the assignments. Individual write failures are
// counted and logged; only a failed listing aborts the batch.
func (e *Engine) ApplyToUncategorized(ctx context.Context, start, end time.Time) (BatchResult, error) {
	txs, err := e.store.ListTransactions(ctx, store.TransactionFilter{Start: &start, End: &end, Uncategorized: true})
	if err != nil {
		return BatchResult{}, fmt.Errorf("apply categorization: %w", err)
	}

	var result BatchResult
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		res := e.Categorize(ctx, tx)
		if res.Category == "" {
			continue
		}
		res.Apply(tx)
		if err := e.store.UpdateTransaction(ctx, tx); err != nil {
			e.logger.Warn("saving categorization failed", zap.String("transaction_id", tx.ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Categorized++

		if res.Confidence < AutoLearnConfidence {
			continue
		}
		normalized := Normalize(tx.Description)
		record := &model.LearningRecord{
			ID:                    uuid.New().String(),
			TransactionID:         tx.ID,
			OriginalDescription:   tx.Description,
			NormalizedDescription: normalized,
			AssignedCategoryID:    res.Category,
			TransactionType:       res.TransactionType,
			AssignedBy:            model.AssignedByAuto,
			Confidence:            res.Confidence,
			KeywordsExtracted:     ExtractKeywords(normalized),
			CreatedAt:             e.now(),
		}
		if err := e.store.SaveLearningRecord(ctx, record); err != nil {
			e.logger.Warn("saving auto learning record failed", zap.String("transaction_id", tx.ID), zap.Error(err))
			continue
		}
		result.Learned++
	}

	if result.Learned > 0 {
		e.InvalidateRuleCache()
	}
	e.logger.Info("batch categorization finished",
		zap.Int("processed", result.Processed),
		zap.Int("categorized", result.Categorized),
		zap.Int("learned", result.Learned),
		zap.Int("failed", result.Failed))
	return result, nil
}
