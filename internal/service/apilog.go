package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// RecentLogLimit is the number of logs returned by Recent.
const RecentLogLimit = 100

// APILogService persists captured exchanges off the request path.
type APILogService struct {
	repo    repository.APILogRepository
	entries chan *domain.APILog

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAPILogService creates a service with a write buffer of the given size.
func NewAPILogService(repo repository.APILogRepository, buffer int) *APILogService {
	if buffer < 1 {
		buffer = 1
	}
	return &APILogService{
		repo:    repo,
		entries: make(chan *domain.APILog, buffer),
	}
}

// Start launches the writer goroutine.
func (s *APILogService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for entry := range s.entries {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.repo.Create(ctx, entry); err != nil {
				log.Printf("Error saving api log: endpoint=%s err=%v", entry.Endpoint, err)
			}
			cancel()
		}
	}()
}

// Record queues a log for writing. It never blocks; logs are dropped when
// the buffer is full or the service is closed.
func (s *APILogService) Record(entry *domain.APILog) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.entries <- entry:
	default:
		log.Printf("Warning: api log buffer full, dropping log for %s %s", entry.Method, entry.Endpoint)
	}
}

// Close stops accepting logs and waits for queued ones to be written.
func (s *APILogService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Recent returns the latest logs, newest first.
func (s *APILogService) Recent(ctx context.Context) ([]*domain.APILog, error) {
	return s.repo.Recent(ctx, RecentLogLimit)
}

// ListByPaymentID returns the logs joined to a payment.
func (s *APILogService) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.APILog, error) {
	return s.repo.ListByPaymentID(ctx, paymentID)
}

// APILogStats summarizes request outcomes and latency.
type APILogStats struct {
	TotalRequests int64   `json:"totalRequests"`
	SuccessCount  int64   `json:"successCount"`
	ErrorCount    int64   `json:"errorCount"`
	SuccessRate   float64 `json:"successRate"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	P50LatencyMs  int64   `json:"p50LatencyMs"`
	P95LatencyMs  int64   `json:"p95LatencyMs"`
	P99LatencyMs  int64   `json:"p99LatencyMs"`
}

// Stats computes request statistics over every stored log.
func (s *APILogService) Stats(ctx context.Context) (*APILogStats, error) {
	samples, err := s.repo.Samples(ctx)
	if err != nil {
		return nil, err
	}
	return computeLogStats(samples), nil
}

func computeLogStats(samples []repository.LogSample) *APILogStats {
	stats := &APILogStats{TotalRequests: int64(len(samples))}
	if len(samples) == 0 {
		return stats
	}

	latencies := make([]int64, 0, len(samples))
	var sum int64
	for _, s := range samples {
		switch {
		case s.ResponseStatus >= 200 && s.ResponseStatus < 300:
			stats.SuccessCount++
		case s.ResponseStatus >= 400:
			stats.ErrorCount++
		}
		latencies = append(latencies, s.LatencyMs)
		sum += s.LatencyMs
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	n := len(latencies)
	stats.SuccessRate = round2(float64(stats.SuccessCount) / float64(n) * 100)
	stats.AvgLatencyMs = round2(float64(sum) / float64(n))
	stats.P50LatencyMs = latencies[n/2]
	stats.P95LatencyMs = latencies[percentileIndex(n, 0.95)]
	stats.P99LatencyMs = latencies[percentileIndex(n, 0.99)]

	return stats
}

func percentileIndex(n int, p float64) int {
	i := int(float64(n) * p)
	if i > n-1 {
		i = n - 1
	}
	return i
}
