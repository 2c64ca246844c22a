package service

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// ProviderMetrics summarizes attempts routed to one issuing bank.
type ProviderMetrics struct {
	TotalAttempts int64   `json:"totalAttempts"`
	SuccessCount  int64   `json:"successCount"`
	FailureCount  int64   `json:"failureCount"`
	SuccessRate   float64 `json:"successRate"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
}

// MetricsSummary is the dashboard projection over payments, attempts and
// API logs. It is read-only with respect to payment state.
type MetricsSummary struct {
	TotalPayments    int64                       `json:"totalPayments"`
	TotalSuccessful  int64                       `json:"totalSuccessful"`
	TotalFailed      int64                       `json:"totalFailed"`
	TotalCancelled   int64                       `json:"totalCancelled"`
	TotalPending     int64                       `json:"totalPending"`
	SuccessRate      float64                     `json:"successRate"`
	PaymentsByStatus map[string]int64            `json:"paymentsByStatus"`
	TotalRevenue     decimal.Decimal             `json:"totalRevenue"`
	TotalCommission  decimal.Decimal             `json:"totalCommission"`
	NetRevenue       decimal.Decimal             `json:"netRevenue"`
	TotalRefunded    decimal.Decimal             `json:"totalRefunded"`
	PaymentsLast24h  int64                       `json:"paymentsLast24h"`
	VolumeLast24h    decimal.Decimal             `json:"volumeLast24h"`
	Providers        map[string]*ProviderMetrics `json:"providerMetrics"`
	AvgLatencyMs     float64                     `json:"avgLatencyMs"`
	MaxLatencyMs     int64                       `json:"maxLatencyMs"`
	API              *APILogStats                `json:"api"`
}

// MetricsService aggregates dashboard metrics.
type MetricsService struct {
	payments repository.PaymentRepository
	attempts repository.AttemptRepository
	logs     repository.APILogRepository
	now      func() time.Time
}

// NewMetricsService creates a new MetricsService.
func NewMetricsService(payments repository.PaymentRepository, attempts repository.AttemptRepository, logs repository.APILogRepository) *MetricsService {
	return &MetricsService{
		payments: payments,
		attempts: attempts,
		logs:     logs,
		now:      time.Now,
	}
}

// Summary loads payments, attempts and log samples concurrently and
// aggregates them.
func (s *MetricsService) Summary(ctx context.Context) (*MetricsSummary, error) {
	var (
		payments []*domain.Payment
		attempts []*domain.Attempt
		samples  []repository.LogSample
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payments, err = s.payments.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = s.logs.Samples(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := summarizePayments(payments, s.now())
	summarizeAttempts(summary, attempts)
	summary.API = computeLogStats(samples)

	return summary, nil
}

func summarizePayments(payments []*domain.Payment, now time.Time) *MetricsSummary {
	summary := &MetricsSummary{
		TotalPayments:    int64(len(payments)),
		PaymentsByStatus: make(map[string]int64),
		TotalRevenue:     decimal.Zero,
		TotalCommission:  decimal.Zero,
		NetRevenue:       decimal.Zero,
		TotalRefunded:    decimal.Zero,
		VolumeLast24h:    decimal.Zero,
	}
	since := now.Add(-24 * time.Hour)

	for _, p := range payments {
		summary.PaymentsByStatus[string(p.Status)]++

		switch p.Status {
		case domain.PaymentStatusCaptured, domain.PaymentStatusRefunded, domain.PaymentStatusPartiallyRefunded:
			summary.TotalSuccessful++
			summary.TotalRevenue = summary.TotalRevenue.Add(p.Amount)
			if p.Settlement != nil {
				summary.TotalCommission = summary.TotalCommission.Add(p.Settlement.CommissionAmount)
				summary.NetRevenue = summary.NetRevenue.Add(p.Settlement.NetAmount)
			}
			summary.TotalRefunded = summary.TotalRefunded.Add(p.RefundedAmount)
		case domain.PaymentStatusFailed:
			summary.TotalFailed++
		case domain.PaymentStatusCancelled:
			summary.TotalCancelled++
		default:
			summary.TotalPending++
		}

		if p.CreatedAt.After(since) {
			summary.PaymentsLast24h++
			summary.VolumeLast24h = summary.VolumeLast24h.Add(p.Amount)
		}
	}

	if summary.TotalPayments > 0 {
		summary.SuccessRate = round2(float64(summary.TotalSuccessful) / float64(summary.TotalPayments) * 100)
	}

	return summary
}

func summarizeAttempts(summary *MetricsSummary, attempts []*domain.Attempt) {
	summary.Providers = make(map[string]*ProviderMetrics)
	latencySums := make(map[string]int64)
	var total int64

	for _, a := range attempts {
		pm, ok := summary.Providers[a.Provider]
		if !ok {
			pm = &ProviderMetrics{}
			summary.Providers[a.Provider] = pm
		}
		pm.TotalAttempts++
		switch a.Status {
		case domain.AttemptStatusSuccess:
			pm.SuccessCount++
		case domain.AttemptStatusFailure:
			pm.FailureCount++
		}
		latencySums[a.Provider] += a.LatencyMs

		total += a.LatencyMs
		if a.LatencyMs > summary.MaxLatencyMs {
			summary.MaxLatencyMs = a.LatencyMs
		}
	}

	for name, pm := range summary.Providers {
		pm.SuccessRate = round2(float64(pm.SuccessCount) / float64(pm.TotalAttempts) * 100)
		pm.AvgLatencyMs = round2(float64(latencySums[name]) / float64(pm.TotalAttempts))
	}
	if len(attempts) > 0 {
		summary.AvgLatencyMs = round2(float64(total) / float64(len(attempts)))
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
