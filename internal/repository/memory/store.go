// Package memory is an in-process implementation of the repository
// contracts. It backs STORAGE_DRIVER=memory and doubles as the store in
// tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// Store is an in-memory repository.Store.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	orders     map[string]*domain.Order
	payments   map[string]*domain.Payment
	challenges []*domain.Challenge
	attempts   []*domain.Attempt
	outbox     []*domain.OutboxEvent
	webhooks   []*domain.WebhookDelivery
	cards      map[string]*domain.TestCard
	cardOrder  []string
	logs       []*domain.APILog

	// Error injection
	TransitionError error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]*domain.Order),
		payments: make(map[string]*domain.Payment),
		cards:    make(map[string]*domain.TestCard),
	}
}

var (
	_ repository.Store            = (*Store)(nil)
	_ repository.APILogRepository = (*apiLogRepo)(nil)
)

func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }
func (s *Store) Payments() repository.PaymentRepository { return paymentRepo{s} }
func (s *Store) Challenges() repository.ChallengeRepository { return challengeRepo{s} }
func (s *Store) Attempts() repository.AttemptRepository { return attemptRepo{s} }
func (s *Store) TestCards() repository.TestCardRepository { return testCardRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }
func (s *Store) Webhooks() repository.WebhookRepository { return webhookRepo{s} }

// APILogs returns the in-memory API log repository.
func (s *Store) APILogs() repository.APILogRepository { return &apiLogRepo{s} }

// InTx serializes fn against other transactions and restores the previous
// contents if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	orders     map[string]*domain.Order
	payments   map[string]*domain.Payment
	challenges []*domain.Challenge
	attempts   []*domain.Attempt
	outbox     []*domain.OutboxEvent
	webhooks   []*domain.WebhookDelivery
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		orders:     make(map[string]*domain.Order, len(s.orders)),
		payments:   make(map[string]*domain.Payment, len(s.payments)),
		challenges: make([]*domain.Challenge, len(s.challenges)),
		attempts:   append([]*domain.Attempt(nil), s.attempts...),
	}
	for id, o := range s.orders {
		snap.orders[id] = o
	}
	for id, p := range s.payments {
		snap.payments[id] = clonePayment(p)
	}
	for i, c := range s.challenges {
		cp := *c
		snap.challenges[i] = &cp
	}
	for _, e := range s.outbox {
		cp := *e
		snap.outbox = append(snap.outbox, &cp)
	}
	for _, d := range s.webhooks {
		cp := *d
		snap.webhooks = append(snap.webhooks, &cp)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = snap.orders
	s.payments = snap.payments
	s.challenges = snap.challenges
	s.attempts = snap.attempts
	s.outbox = snap.outbox
	s.webhooks = snap.webhooks
}

// PutPayment stores a payment as-is, bypassing transition checks.
func (s *Store) PutPayment(p *domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = clonePayment(p)
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.Settlement != nil {
		st := *p.Settlement
		cp.Settlement = &st
	}
	return &cp
}

// ──────────────────────────────────────────────
// ORDERS
// ──────────────────────────────────────────────

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *order
	r.s.orders[order.ID] = &cp
	return nil
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// ──────────────────────────────────────────────
// PAYMENTS
// ──────────────────────────────────────────────

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r paymentRepo) List(ctx context.Context) ([]*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]*domain.Payment, 0, len(r.s.payments))
	for _, p := range r.s.payments {
		result = append(result, clonePayment(p))
	}
	sortNewestFirst(result)
	return result, nil
}

func (r paymentRepo) ListStale(ctx context.Context, statuses []domain.PaymentStatus, before time.Time) ([]*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []*domain.Payment
	for _, p := range r.s.payments {
		if !p.CreatedAt.Before(before) {
			continue
		}
		for _, st := range statuses {
			if p.Status == st {
				result = append(result, clonePayment(p))
				break
			}
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (r paymentRepo) Transition(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	if r.s.TransitionError != nil {
		return r.s.TransitionError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.payments[payment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expected {
		return repository.ErrStaleStatus
	}
	r.s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func sortNewestFirst(ps []*domain.Payment) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

// ──────────────────────────────────────────────
// CHALLENGES
// ──────────────────────────────────────────────

type challengeRepo struct{ s *Store }

func (r challengeRepo) Create(ctx context.Context, challenge *domain.Challenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *challenge
	r.s.challenges = append(r.s.challenges, &cp)
	return nil
}

func (r challengeRepo) GetLatestByPaymentID(ctx context.Context, paymentID string) (*domain.Challenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := len(r.s.challenges) - 1; i >= 0; i-- {
		if c := r.s.challenges[i]; c.PaymentID == paymentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r challengeRepo) Update(ctx context.Context, challenge *domain.Challenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, c := range r.s.challenges {
		if c.ID == challenge.ID {
			cp := *challenge
			r.s.challenges[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

// ──────────────────────────────────────────────
// ATTEMPTS
// ──────────────────────────────────────────────

type attemptRepo struct{ s *Store }

func (r attemptRepo) Create(ctx context.Context, attempt *domain.Attempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *attempt
	r.s.attempts = append(r.s.attempts, &cp)
	return nil
}

func (r attemptRepo) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []*domain.Attempt
	for _, a := range r.s.attempts {
		if a.PaymentID == paymentID {
			cp := *a
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r attemptRepo) List(ctx context.Context) ([]*domain.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]*domain.Attempt, 0, len(r.s.attempts))
	for _, a := range r.s.attempts {
		cp := *a
		result = append(result, &cp)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// OUTBOX
// ──────────────────────────────────────────────

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, event *domain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *event
	r.s.outbox = append(r.s.outbox, &cp)
	return nil
}

func (r outboxRepo) ListPending(ctx context.Context, maxRetries, limit int) ([]*domain.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []*domain.OutboxEvent
	for _, e := range r.s.outbox {
		if len(result) == limit {
			break
		}
		if e.Status == domain.OutboxStatusNew && e.RetryCount < maxRetries {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r outboxRepo) Update(ctx context.Context, event *domain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, e := range r.s.outbox {
		if e.ID == event.ID {
			cp := *event
			r.s.outbox[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

// OutboxEvents returns every outbox event in publication order.
func (s *Store) OutboxEvents() []*domain.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.OutboxEvent, len(s.outbox))
	for i, e := range s.outbox {
		cp := *e
		result[i] = &cp
	}
	return result
}

// ──────────────────────────────────────────────
// WEBHOOK DELIVERIES
// ──────────────────────────────────────────────

type webhookRepo struct{ s *Store }

func (r webhookRepo) Create(ctx context.Context, delivery *domain.WebhookDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *delivery
	r.s.webhooks = append(r.s.webhooks, &cp)
	return nil
}

func (r webhookRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.WebhookDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*domain.WebhookDelivery
	for _, d := range r.s.webhooks {
		if len(result) == limit {
			break
		}
		if d.IsDue(now) {
			d.NextRetryAt = now.Add(lease)
			cp := *d
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r webhookRepo) Update(ctx context.Context, delivery *domain.WebhookDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, d := range r.s.webhooks {
		if d.ID == delivery.ID {
			cp := *delivery
			r.s.webhooks[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r webhookRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.WebhookDelivery, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []*domain.WebhookDelivery
	for _, d := range r.s.webhooks {
		if d.EventID == eventID {
			cp := *d
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// TEST CARDS
// ──────────────────────────────────────────────

type testCardRepo struct{ s *Store }

func (r testCardRepo) Upsert(ctx context.Context, card *domain.TestCard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cards[card.Number]; !ok {
		r.s.cardOrder = append(r.s.cardOrder, card.Number)
	}
	cp := *card
	r.s.cards[card.Number] = &cp
	return nil
}

func (r testCardRepo) GetByNumber(ctx context.Context, number string) (*domain.TestCard, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.cards[number]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r testCardRepo) GetByBIN(ctx context.Context, bin string) (*domain.TestCard, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, n := range r.s.cardOrder {
		if strings.HasPrefix(n, bin) {
			cp := *r.s.cards[n]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r testCardRepo) List(ctx context.Context) ([]*domain.TestCard, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]*domain.TestCard, 0, len(r.s.cardOrder))
	for _, n := range r.s.cardOrder {
		cp := *r.s.cards[n]
		result = append(result, &cp)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// API LOGS
// ──────────────────────────────────────────────

type apiLogRepo struct{ s *Store }

func (r *apiLogRepo) Create(ctx context.Context, log *domain.APILog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *log
	r.s.logs = append(r.s.logs, &cp)
	return nil
}

func (r *apiLogRepo) Recent(ctx context.Context, limit int) ([]*domain.APILog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []*domain.APILog
	for i := len(r.s.logs) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *r.s.logs[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (r *apiLogRepo) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.APILog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []*domain.APILog
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		if l := r.s.logs[i]; l.PaymentID == paymentID {
			cp := *l
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *apiLogRepo) Samples(ctx context.Context) ([]repository.LogSample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]repository.LogSample, 0, len(r.s.logs))
	for _, l := range r.s.logs {
		result = append(result, repository.LogSample{ResponseStatus: l.ResponseStatus, LatencyMs: l.LatencyMs})
	}
	return result, nil
}
