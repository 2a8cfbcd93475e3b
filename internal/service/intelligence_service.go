// Package service exposes the intelligence core over Connect RPC.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"go.uber.org/zap"

	"github.com/castlemilk/finintel/backend/internal/aggregate"
	"github.com/castlemilk/finintel/backend/internal/alerts"
	"github.com/castlemilk/finintel/backend/internal/categorize"
	"github.com/castlemilk/finintel/backend/internal/intelligence"
	"github.com/castlemilk/finintel/backend/internal/model"
	"github.com/castlemilk/finintel/backend/internal/predict"
	"github.com/castlemilk/finintel/backend/internal/store"
)

// ServiceName is the fully-qualified name of the RPC service.
const ServiceName = "finintel.v1.IntelligenceService"

// Procedure paths.
const (
	GetReportProcedure            = "/" + ServiceName + "/GetReport"
	InvalidateCacheProcedure      = "/" + ServiceName + "/InvalidateCache"
	CategorizeProcedure           = "/" + ServiceName + "/Categorize"
	ApplyCategorizationProcedure  = "/" + ServiceName + "/ApplyCategorization"
	LearnFromTransactionProcedure = "/" + ServiceName + "/LearnFromTransaction"
	LearnFromCorrectionProcedure  = "/" + ServiceName + "/LearnFromCorrection"
	GetPredictionsProcedure       = "/" + ServiceName + "/GetPredictions"
	GetPeriodStatsProcedure       = "/" + ServiceName + "/GetPeriodStats"
	GetTrendProcedure             = "/" + ServiceName + "/GetTrend"
	ListAlertsProcedure           = "/" + ServiceName + "/ListAlerts"
	AcknowledgeAlertProcedure     = "/" + ServiceName + "/AcknowledgeAlert"
)

const (
	dateLayout        = "2006-01-02"
	defaultRangeDays  = 30
	maxPeriodDays     = 3650
	maxPredictionDays = 365
)

// IntelligenceService implements the RPC surface.
type IntelligenceService struct {
	store        store.Store
	agg          *aggregate.Aggregator
	orchestrator *intelligence.Orchestrator
	engine       *categorize.Engine
	predictions  *predict.Analyzer
	alerts       *alerts.Manager
	logger       *zap.Logger
}

// Deps are the components the service delegates to.
type Deps struct {
	Store        store.Store
	Aggregator   *aggregate.Aggregator
	Orchestrator *intelligence.Orchestrator
	Engine       *categorize.Engine
	Predictions  *predict.Analyzer
	Alerts       *alerts.Manager
}

func NewIntelligenceService(d Deps, logger *zap.Logger) *IntelligenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntelligenceService{
		store:        d.Store,
		agg:          d.Aggregator,
		orchestrator: d.Orchestrator,
		engine:       d.Engine,
		predictions:  d.Predictions,
		alerts:       d.Alerts,
		logger:       logger.Named("service"),
	}
}

// NewHandler builds an HTTP handler serving every procedure of svc. The
// returned path is the prefix to mount it under.
func NewHandler(svc *IntelligenceService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec())}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GetReportProcedure, connect.NewUnaryHandler(GetReportProcedure, svc.GetReport, opts...))
	mux.Handle(InvalidateCacheProcedure, connect.NewUnaryHandler(InvalidateCacheProcedure, svc.InvalidateCache, opts...))
	mux.Handle(CategorizeProcedure, connect.NewUnaryHandler(CategorizeProcedure, svc.Categorize, opts...))
	mux.Handle(ApplyCategorizationProcedure, connect.NewUnaryHandler(ApplyCategorizationProcedure, svc.ApplyCategorization, opts...))
	mux.Handle(LearnFromTransactionProcedure, connect.NewUnaryHandler(LearnFromTransactionProcedure, svc.LearnFromTransaction, opts...))
	mux.Handle(LearnFromCorrectionProcedure, connect.NewUnaryHandler(LearnFromCorrectionProcedure, svc.LearnFromCorrection, opts...))
	mux.Handle(GetPredictionsProcedure, connect.NewUnaryHandler(GetPredictionsProcedure, svc.GetPredictions, opts...))
	mux.Handle(GetPeriodStatsProcedure, connect.NewUnaryHandler(GetPeriodStatsProcedure, svc.GetPeriodStats, opts...))
	mux.Handle(GetTrendProcedure, connect.NewUnaryHandler(GetTrendProcedure, svc.GetTrend, opts...))
	mux.Handle(ListAlertsProcedure, connect.NewUnaryHandler(ListAlertsProcedure, svc.ListAlerts, opts...))
	mux.Handle(AcknowledgeAlertProcedure, connect.NewUnaryHandler(AcknowledgeAlertProcedure, svc.AcknowledgeAlert, opts...))
	return "/" + ServiceName + "/", mux
}

// GetReport returns the intelligence report for the last period_days days.
func (s *IntelligenceService) GetReport(ctx context.Context, req *connect.Request[GetReportRequest]) (*connect.Response[intelligence.Report], error) {
	days := req.Msg.PeriodDays
	if days < 0 || days > maxPeriodDays {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("period_days must be between 0 and %d", maxPeriodDays))
	}
	r := s.orchestrator.GenerateReport(ctx, days, req.Msg.ForceRefresh)
	return connect.NewResponse(r), nil
}

// InvalidateCache drops cached reports and categorization rules, typically after an import.
func (s *IntelligenceService) InvalidateCache(ctx context.Context, req *connect.Request[InvalidateCacheRequest]) (*connect.Response[InvalidateCacheResponse], error) {
	s.orchestrator.InvalidateCache()
	s.engine.InvalidateRuleCache()
	return connect.NewResponse(&InvalidateCacheResponse{}), nil
}

// Categorize suggests a category for a stored or inline transaction without saving it.
func (s *IntelligenceService) Categorize(ctx context.Context, req *connect.Request[CategorizeRequest]) (*connect.Response[categorize.Result], error) {
	tx, err := s.resolveTransaction(ctx, req.Msg.TransactionID, req.Msg.Transaction)
	if err != nil {
		return nil, err
	}
	res := s.engine.Categorize(ctx, tx)
	return connect.NewResponse(&res), nil
}

// ApplyCategorization categorizes and saves every uncategorized transaction in range.
func (s *IntelligenceService) ApplyCategorization(ctx context.Context, req *connect.Request[ApplyCategorizationRequest]) (*connect.Response[categorize.BatchResult], error) {
	start, end, err := s.parseRange(req.Msg.Range)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ApplyToUncategorized(ctx, start, end)
	if err != nil {
		return nil, s.toConnectError("apply categorization", err)
	}
	if res.Categorized > 0 {
		s.orchestrator.InvalidateCache()
	}
	return connect.NewResponse(&res), nil
}

// LearnFromTransaction records a manual category assignment.
func (s *IntelligenceService) LearnFromTransaction(ctx context.Context, req *connect.Request[LearnFromTransactionRequest]) (*connect.Response[categorize.LearnResult], error) {
	if req.Msg.CategoryID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("category_id is required"))
	}
	tx, err := s.resolveTransaction(ctx, req.Msg.TransactionID, req.Msg.Transaction)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.LearnFromTransaction(ctx, tx, req.Msg.CategoryID, req.Msg.IsBusiness)
	if err != nil {
		return nil, s.toConnectError("learn from transaction", err)
	}
	return connect.NewResponse(&res), nil
}

// LearnFromCorrection re-learns a stored transaction under a new category.
func (s *IntelligenceService) LearnFromCorrection(ctx context.Context, req *connect.Request[LearnFromCorrectionRequest]) (*connect.Response[categorize.LearnResult], error) {
	if req.Msg.TransactionID == "" || req.Msg.NewCategory == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("transaction_id and new_category are required"))
	}
	res, err := s.engine.LearnFromCorrection(ctx, req.Msg.TransactionID, req.Msg.OldCategory, req.Msg.NewCategory)
	if err != nil {
		return nil, s.toConnectError("learn from correction", err)
	}
	return connect.NewResponse(&res), nil
}

// GetPredictions forecasts income, expenses and cash flow days_ahead days out.
func (s *IntelligenceService) GetPredictions(ctx context.Context, req *connect.Request[GetPredictionsRequest]) (*connect.Response[predict.Predictions], error) {
	days := req.Msg.DaysAhead
	if days < 0 || days > maxPredictionDays {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("days_ahead must be between 0 and %d", maxPredictionDays))
	}
	p, err := s.predictions.GeneratePredictions(ctx, days)
	if err != nil {
		return nil, s.toConnectError("predictions", err)
	}
	return connect.NewResponse(&p), nil
}

// topExpenseCategories is the length of the top expenses list in period stats.
const topExpenseCategories = 5

// GetPeriodStats returns totals, category breakdown and the business/personal split.
func (s *IntelligenceService) GetPeriodStats(ctx context.Context, req *connect.Request[GetPeriodStatsRequest]) (*connect.Response[GetPeriodStatsResponse], error) {
	start, end, err := s.parseRange(req.Msg.Range)
	if err != nil {
		return nil, err
	}
	if err := validType(req.Msg.Type); err != nil {
		return nil, err
	}
	stats, err := s.agg.PeriodStats(ctx, start, end, aggregate.PeriodFilter{AccountID: req.Msg.AccountID, Type: req.Msg.Type})
	if err != nil {
		return nil, s.toConnectError("period stats", err)
	}
	categories, err := s.agg.CategoryStats(ctx, start, end, req.Msg.Type)
	if err != nil {
		return nil, s.toConnectError("category stats", err)
	}
	split, err := s.agg.BusinessVsPersonal(ctx, start, end)
	if err != nil {
		return nil, s.toConnectError("business vs personal", err)
	}
	return connect.NewResponse(&GetPeriodStatsResponse{
		Start:              start.Format(dateLayout),
		End:                end.Format(dateLayout),
		Stats:              stats,
		NetCashflow:        stats.Net(),
		Categories:         categories,
		TopExpenses:        aggregate.RankCategories(categories, topExpenseCategories, model.DirectionExpense),
		BusinessVsPersonal: split,
	}), nil
}

// GetTrend returns the trailing 12 calendar months.
func (s *IntelligenceService) GetTrend(ctx context.Context, req *connect.Request[GetTrendRequest]) (*connect.Response[GetTrendResponse], error) {
	if err := validType(req.Msg.Type); err != nil {
		return nil, err
	}
	months, err := s.agg.Trend12Months(ctx, aggregate.PeriodFilter{AccountID: req.Msg.AccountID, Type: req.Msg.Type})
	if err != nil {
		return nil, s.toConnectError("trend", err)
	}
	return connect.NewResponse(&GetTrendResponse{Months: months}), nil
}

// ListAlerts lists stored alerts, newest first.
func (s *IntelligenceService) ListAlerts(ctx context.Context, req *connect.Request[ListAlertsRequest]) (*connect.Response[ListAlertsResponse], error) {
	items, err := s.alerts.List(ctx, req.Msg.UnacknowledgedOnly)
	if err != nil {
		return nil, s.toConnectError("list alerts", err)
	}
	if items == nil {
		items = []*model.Alert{}
	}
	return connect.NewResponse(&ListAlertsResponse{Alerts: items}), nil
}

// AcknowledgeAlert marks an alert as seen so it no longer blocks new ones.
func (s *IntelligenceService) AcknowledgeAlert(ctx context.Context, req *connect.Request[AcknowledgeAlertRequest]) (*connect.Response[AcknowledgeAlertResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("id is required"))
	}
	if err := s.alerts.Acknowledge(ctx, req.Msg.ID); err != nil {
		return nil, s.toConnectError("acknowledge alert", err)
	}
	return connect.NewResponse(&AcknowledgeAlertResponse{}), nil
}

func (s *IntelligenceService) resolveTransaction(ctx context.Context, id string, inline *model.Transaction) (*model.Transaction, error) {
	if id != "" {
		tx, err := s.store.GetTransaction(ctx, id)
		if err != nil {
			return nil, s.toConnectError("get transaction", err)
		}
		return tx, nil
	}
	if inline == nil || inline.Description == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("transaction_id or a transaction with a description is required"))
	}
	return inline, nil
}

// parseRange resolves a DateRange to [start of first day, end of last day].
func (s *IntelligenceService) parseRange(r DateRange) (time.Time, time.Time, error) {
	now := s.agg.Now()
	end := model.EndOfDay(now)
	if r.End != "" {
		t, err := time.ParseInLocation(dateLayout, r.End, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid end date %q: %w", r.End, err))
		}
		end = model.EndOfDay(t)
	}
	start := model.StartOfDay(end).AddDate(0, 0, -defaultRangeDays)
	if r.Start != "" {
		t, err := time.ParseInLocation(dateLayout, r.Start, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid start date %q: %w", r.Start, err))
		}
		start = model.StartOfDay(t)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("start %s is after end %s", start.Format(dateLayout), end.Format(dateLayout)))
	}
	return start, end, nil
}

func validType(t model.TransactionType) error {
	switch t {
	case "", model.TransactionTypeBusiness, model.TransactionTypePersonal, model.TransactionTypeUnknown:
		return nil
	}
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown transaction type %q", t))
}

// toConnectError maps core errors onto Connect codes.
func (s *IntelligenceService) toConnectError(op string, err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, categorize.ErrEmptyDescription):
		code = connect.CodeInvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	default:
		code = connect.CodeInternal
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	}
	return connect.NewError(code, fmt.Errorf("%s: %w", op, err))
}
