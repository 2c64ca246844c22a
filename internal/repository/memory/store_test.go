package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

func newPayment(id string, status domain.PaymentStatus, created time.Time) *domain.Payment {
	return &domain.Payment{
		ID:        id,
		OrderID:   "ORD-" + id,
		Amount:    decimal.RequireFromString("1500.00"),
		Currency:  domain.DefaultCurrency,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestPayments_TransitionIsCompareAndSwap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	payments := store.Payments()

	if err := payments.Create(ctx, newPayment("p1", domain.PaymentStatusCreated, time.Now())); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	var wins, conflicts int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, _ := payments.GetByID(ctx, "p1")
			p.Status = domain.PaymentStatusAuthorized
			err := payments.Transition(ctx, p, domain.PaymentStatusCreated)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, repository.ErrStaleStatus):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning transition, got %d", wins)
	}
	if wins+conflicts != workers {
		t.Errorf("expected %d outcomes, got %d", workers, wins+conflicts)
	}
}

func TestPayments_TransitionUnknown(t *testing.T) {
	t.Parallel()

	err := NewStore().Payments().Transition(context.Background(), newPayment("missing", domain.PaymentStatusFailed, time.Now()), domain.PaymentStatusCreated)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPayments_ListAndListStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	now := time.Now()

	store.PutPayment(newPayment("old-created", domain.PaymentStatusCreated, now.Add(-time.Hour)))
	store.PutPayment(newPayment("old-captured", domain.PaymentStatusCaptured, now.Add(-2*time.Hour)))
	store.PutPayment(newPayment("fresh", domain.PaymentStatusAuthorized, now))

	all, _ := store.Payments().List(ctx)
	if len(all) != 3 || all[0].ID != "fresh" {
		t.Fatalf("expected newest first, got %v", all)
	}

	stale, err := store.Payments().ListStale(ctx,
		[]domain.PaymentStatus{domain.PaymentStatusCreated, domain.PaymentStatusAuthorized},
		now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("ListStale() error: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "old-created" {
		t.Errorf("unexpected stale payments: %v", stale)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	store.PutPayment(newPayment("p1", domain.PaymentStatusAuthorized, time.Now()))

	errBoom := errors.New("boom")
	err := store.InTx(ctx, func(tx repository.Store) error {
		p, _ := tx.Payments().GetByID(ctx, "p1")
		p.Status = domain.PaymentStatusCaptured
		if err := tx.Payments().Transition(ctx, p, domain.PaymentStatusAuthorized); err != nil {
			return err
		}
		if err := tx.Attempts().Create(ctx, &domain.Attempt{ID: "a1", PaymentID: "p1"}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	p, _ := store.Payments().GetByID(ctx, "p1")
	if p.Status != domain.PaymentStatusAuthorized {
		t.Errorf("expected rollback to AUTHORIZED, got %s", p.Status)
	}
	attempts, _ := store.Attempts().ListByPaymentID(ctx, "p1")
	if len(attempts) != 0 {
		t.Errorf("expected attempts to be rolled back, got %d", len(attempts))
	}
}

func TestChallenges_LatestWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewStore().Challenges()

	_ = repo.Create(ctx, &domain.Challenge{ID: "c1", PaymentID: "p1", Status: domain.ChallengeStatusExpired})
	_ = repo.Create(ctx, &domain.Challenge{ID: "c2", PaymentID: "p1", Status: domain.ChallengeStatusPending})

	c, err := repo.GetLatestByPaymentID(ctx, "p1")
	if err != nil || c.ID != "c2" {
		t.Fatalf("GetLatestByPaymentID() = %v, %v", c, err)
	}

	c.Attempts = 2
	if err := repo.Update(ctx, c); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	c, _ = repo.GetLatestByPaymentID(ctx, "p1")
	if c.Attempts != 2 {
		t.Errorf("expected attempts to be persisted, got %d", c.Attempts)
	}

	if _, err := repo.GetLatestByPaymentID(ctx, "p2"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTestCards_LookupByBIN(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewStore().TestCards()
	_ = repo.Upsert(ctx, &domain.TestCard{Number: "4111111111111111", BankName: "Garanti BBVA"})
	_ = repo.Upsert(ctx, &domain.TestCard{Number: "5555555555554444", BankName: "Akbank"})
	_ = repo.Upsert(ctx, &domain.TestCard{Number: "4111111111111111", BankName: "Garanti"})

	cards, _ := repo.List(ctx)
	if len(cards) != 2 {
		t.Fatalf("expected upsert to replace, got %d cards", len(cards))
	}
	c, err := repo.GetByBIN(ctx, "411111")
	if err != nil || c.BankName != "Garanti" {
		t.Errorf("GetByBIN() = %v, %v", c, err)
	}
}

func TestAPILogs_RecentIsNewestFirstAndLimited(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewStore().APILogs()
	for i := 0; i < 5; i++ {
		_ = repo.Create(ctx, &domain.APILog{ID: string(rune('a' + i)), ResponseStatus: 200, LatencyMs: int64(i)})
	}

	logs, _ := repo.Recent(ctx, 3)
	if len(logs) != 3 || logs[0].ID != "e" {
		t.Errorf("unexpected recent logs: %+v", logs)
	}
	samples, _ := repo.Samples(ctx)
	if len(samples) != 5 {
		t.Errorf("expected 5 samples, got %d", len(samples))
	}
}

func TestLockStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locks := NewLockStore()
	now := time.Now()
	locks.now = func() time.Time { return now }

	token, ok, _ := locks.AcquirePaymentLock(ctx, "p1", time.Second)
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	if _, ok, _ := locks.AcquirePaymentLock(ctx, "p1", time.Second); ok {
		t.Fatal("expected second acquire to fail while held")
	}

	// A stale token must not release the lock.
	_ = locks.ReleasePaymentLock(ctx, "p1", "other")
	if _, ok, _ := locks.AcquirePaymentLock(ctx, "p1", time.Second); ok {
		t.Fatal("lock released by a foreign token")
	}

	_ = locks.ReleasePaymentLock(ctx, "p1", token)
	if _, ok, _ := locks.AcquirePaymentLock(ctx, "p1", time.Second); !ok {
		t.Fatal("expected acquire after release to succeed")
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := locks.AcquirePaymentLock(ctx, "p1", time.Second); !ok {
		t.Fatal("expected acquire after expiry to succeed")
	}
}

func TestOutbox_ListPendingSkipsProcessedAndRetried(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewStore().Outbox()
	_ = repo.Create(ctx, &domain.OutboxEvent{ID: "e1", Status: domain.OutboxStatusNew})
	_ = repo.Create(ctx, &domain.OutboxEvent{ID: "e2", Status: domain.OutboxStatusSent})
	_ = repo.Create(ctx, &domain.OutboxEvent{ID: "e3", Status: domain.OutboxStatusNew, RetryCount: 3})
	_ = repo.Create(ctx, &domain.OutboxEvent{ID: "e4", Status: domain.OutboxStatusNew, RetryCount: 1})
	_ = repo.Create(ctx, &domain.OutboxEvent{ID: "e5", Status: domain.OutboxStatusNew})

	events, err := repo.ListPending(ctx, 3, 2)
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e1" || events[1].ID != "e4" {
		t.Errorf("unexpected pending events: %+v", events)
	}
}

func TestInTx_RollsBackOutbox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()

	errBoom := errors.New("boom")
	_ = store.InTx(ctx, func(tx repository.Store) error {
		_ = tx.Outbox().Create(ctx, &domain.OutboxEvent{ID: "e1", Status: domain.OutboxStatusNew})
		_ = tx.Webhooks().Create(ctx, &domain.WebhookDelivery{ID: "d1", Status: domain.DeliveryStatusPending})
		return errBoom
	})

	if events := store.OutboxEvents(); len(events) != 0 {
		t.Errorf("expected outbox rollback, got %d events", len(events))
	}
	claimed, _ := store.Webhooks().ClaimDue(ctx, time.Now(), time.Minute, 10)
	if len(claimed) != 0 {
		t.Errorf("expected delivery rollback, got %d", len(claimed))
	}
}

func TestWebhooks_ClaimDueLeases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewStore().Webhooks()
	now := time.Now()
	_ = repo.Create(ctx, &domain.WebhookDelivery{ID: "due", EventID: "e1", Status: domain.DeliveryStatusPending, NextRetryAt: now})
	_ = repo.Create(ctx, &domain.WebhookDelivery{ID: "later", EventID: "e1", Status: domain.DeliveryStatusFailed, NextRetryAt: now.Add(time.Hour)})
	_ = repo.Create(ctx, &domain.WebhookDelivery{ID: "done", EventID: "e2", Status: domain.DeliveryStatusDelivered})

	claimed, err := repo.ClaimDue(ctx, now, time.Minute, 10)
	if err != nil {
		t.Fatalf("ClaimDue() error: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != "due" {
		t.Fatalf("unexpected claim: %+v", claimed)
	}

	if again, _ := repo.ClaimDue(ctx, now, time.Minute, 10); len(again) != 0 {
		t.Errorf("leased delivery claimed twice: %+v", again)
	}
	if later, _ := repo.ClaimDue(ctx, now.Add(2*time.Minute), time.Minute, 10); len(later) != 1 {
		t.Errorf("expected the lease to run out, got %d", len(later))
	}

	byEvent, _ := repo.ListByEventID(ctx, "e1")
	if len(byEvent) != 2 {
		t.Errorf("expected 2 deliveries for e1, got %d", len(byEvent))
	}
}
