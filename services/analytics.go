package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"barber-queue/models"
)

// VIPPriorityFee is the canonical priority-placement surcharge in pesos.
var VIPPriorityFee = decimal.NewFromInt(149)

// AnalyticsAPI is the slice of the backend API the dashboard needs.
type AnalyticsAPI interface {
	Analytics(ctx context.Context, barberID string) ([]models.AnalyticsRow, error)
	FeedbackByBarber(ctx context.Context, barberID string) ([]models.FeedbackEntry, error)
}

// EarningsSummary is the client-side aggregation shown on the dashboard.
type EarningsSummary struct {
	CutCount      int                        `json:"cut_count"`
	GrossTotal    decimal.Decimal            `json:"gross_total"`
	TipTotal      decimal.Decimal            `json:"tip_total"`
	VIPFeeTotal   decimal.Decimal            `json:"vip_fee_total"`
	AveragePerCut decimal.Decimal            `json:"average_per_cut"`
	ByDay         map[string]decimal.Decimal `json:"by_day"`
}

// Summarize folds completed-cut rows into dashboard totals.
func Summarize(rows []models.AnalyticsRow) EarningsSummary {
	summary := EarningsSummary{
		GrossTotal:    decimal.Zero,
		TipTotal:      decimal.Zero,
		VIPFeeTotal:   decimal.Zero,
		AveragePerCut: decimal.Zero,
		ByDay:         make(map[string]decimal.Decimal),
	}

	for _, row := range rows {
		summary.CutCount++
		summary.GrossTotal = summary.GrossTotal.Add(row.Amount)
		summary.TipTotal = summary.TipTotal.Add(row.Tip)
		if row.IsVIPCut {
			summary.VIPFeeTotal = summary.VIPFeeTotal.Add(VIPPriorityFee)
		}

		day := row.CompletedAt.Format("2006-01-02")
		total, ok := summary.ByDay[day]
		if !ok {
			total = decimal.Zero
		}
		summary.ByDay[day] = total.Add(row.Amount).Add(row.Tip)
	}

	if summary.CutCount > 0 {
		summary.AveragePerCut = summary.GrossTotal.
			Add(summary.TipTotal).
			Div(decimal.NewFromInt(int64(summary.CutCount))).
			Round(2)
	}
	return summary
}

// AnalyticsService serves the earnings dashboard from raw API rows.
type AnalyticsService struct {
	api AnalyticsAPI
}

func NewAnalyticsService(api AnalyticsAPI) *AnalyticsService {
	return &AnalyticsService{api: api}
}

func (s *AnalyticsService) Earnings(ctx context.Context, barberID string) (EarningsSummary, error) {
	rows, err := s.api.Analytics(ctx, barberID)
	if err != nil {
		return EarningsSummary{}, fmt.Errorf("analytics: %w", err)
	}
	return Summarize(rows), nil
}

// AverageRating folds feedback rows into a mean rating, zero when empty.
func AverageRating(rows []models.FeedbackEntry) decimal.Decimal {
	if len(rows) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(decimal.NewFromInt(int64(row.Rating)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(rows)))).Round(2)
}

func (s *AnalyticsService) Rating(ctx context.Context, barberID string) (decimal.Decimal, []models.FeedbackEntry, error) {
	rows, err := s.api.FeedbackByBarber(ctx, barberID)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("feedback: %w", err)
	}
	return AverageRating(rows), rows, nil
}
