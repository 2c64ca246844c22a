package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/apperr"
	"checkout/internal/client"
)

type fakeProtocol struct {
	mu sync.Mutex

	authorize client.AuthorizationOutcome
	verify    []client.ChallengeOutcome
	cancelErr error

	cancelled []string
	orders    int
}

func (f *fakeProtocol) CreateOrder(_ context.Context, _ string, amount decimal.Decimal, _ string) (*client.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.orders++
	return &client.Order{
		PaymentID: fmt.Sprintf("pay-%d", f.orders),
		OrderID:   fmt.Sprintf("ord-%d", f.orders),
		Amount:    amount,
		Status:    client.StatusCreated,
	}, nil
}

func (f *fakeProtocol) Authorize(context.Context, string, client.Card) (client.AuthorizationOutcome, error) {
	return f.authorize, nil
}

func (f *fakeProtocol) VerifyChallenge(context.Context, string, string) (client.ChallengeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.verify[0]
	f.verify = f.verify[1:]
	return next, nil
}

func (f *fakeProtocol) Cancel(_ context.Context, paymentID, _ string) (*client.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancelled = append(f.cancelled, paymentID)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &client.Payment{ID: paymentID, Status: client.StatusCancelled}, nil
}

var flowCard = client.Card{
	Number:      "4111111111111111",
	Holder:      "Demo User",
	ExpiryMonth: "12",
	ExpiryYear:  "2030",
	CVV:         "123",
}

func startFlow(t *testing.T, p *fakeProtocol, delay time.Duration, onRedirect func(Context)) (*Flow, *Session) {
	t.Helper()

	session := NewSession()
	flow := NewFlow(p, session, delay, onRedirect)
	if _, err := flow.Start(context.Background(), "Laptop", decimal.RequireFromString("1500.00"), "buyer@example.com"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return flow, session
}

func TestFlow_ChallengeThenSettled(t *testing.T) {
	t.Parallel()

	p := &fakeProtocol{
		authorize: client.ChallengeRequired{BankName: "Garanti BBVA"},
		verify: []client.ChallengeOutcome{
			client.Rejected{Code: "INVALID_OTP", RemainingAttempts: 2, Status: client.StatusAuthorized},
			client.Settled{ProviderReference: "DEMO-ABC"},
		},
	}

	redirected := make(chan Context, 1)
	flow, session := startFlow(t, p, 10*time.Millisecond, func(c Context) { redirected <- c })
	ctx := context.Background()

	if _, err := flow.Pay(ctx, flowCard); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	c, _ := session.Current()
	if c.BankName != "Garanti BBVA" || c.Outcome != nil {
		t.Fatalf("unexpected context after challenge %+v", c)
	}

	outcome, err := flow.Verify(ctx, "123456")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if _, ok := outcome.(client.Rejected); !ok {
		t.Fatalf("expected Rejected, got %T", outcome)
	}
	if flow.Redirect() != nil {
		t.Fatal("retryable rejection must not schedule a redirect")
	}

	if _, err := flow.Verify(ctx, "111111"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	select {
	case c := <-redirected:
		if c.Outcome == nil || !c.Outcome.Success || c.Outcome.ProviderReference != "DEMO-ABC" {
			t.Errorf("unexpected outcome %+v", c.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("redirect did not fire")
	}

	<-flow.Redirect().Done()
	if _, ok := session.Current(); ok {
		t.Error("expected session cleared after redirect")
	}
}

func TestFlow_DeclinedFinishesSession(t *testing.T) {
	t.Parallel()

	p := &fakeProtocol{authorize: client.Declined{Message: "insufficient funds"}}
	flow, session := startFlow(t, p, time.Hour, nil)
	ctx := context.Background()

	if _, err := flow.Pay(ctx, flowCard); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}

	c, _ := session.Current()
	if c.Outcome == nil || c.Outcome.Success || c.Outcome.Message != "insufficient funds" {
		t.Fatalf("unexpected outcome %+v", c.Outcome)
	}
	if flow.Redirect() == nil {
		t.Fatal("expected a pending redirect")
	}

	if _, err := flow.Pay(ctx, flowCard); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("expected ErrSessionFinished, got %v", err)
	}
}

func TestFlow_ExhaustedRejectionFinishes(t *testing.T) {
	t.Parallel()

	p := &fakeProtocol{
		authorize: client.ChallengeRequired{BankName: "Yapi Kredi"},
		verify: []client.ChallengeOutcome{
			client.Rejected{Code: "MAX_ATTEMPTS", Status: client.StatusFailed},
		},
	}
	flow, session := startFlow(t, p, time.Hour, nil)
	ctx := context.Background()

	if _, err := flow.Pay(ctx, flowCard); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	if _, err := flow.Verify(ctx, "000000"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	c, _ := session.Current()
	if c.Outcome == nil || c.Outcome.Code != "MAX_ATTEMPTS" {
		t.Fatalf("unexpected outcome %+v", c.Outcome)
	}
}

func TestFlow_NoSession(t *testing.T) {
	t.Parallel()

	flow := NewFlow(&fakeProtocol{}, NewSession(), time.Second, nil)
	ctx := context.Background()

	if _, err := flow.Pay(ctx, flowCard); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Pay: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := flow.Verify(ctx, "111111"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Verify: expected ErrNoActiveSession, got %v", err)
	}
	if err := flow.Abandon(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Abandon: expected ErrNoActiveSession, got %v", err)
	}
}

func TestFlow_Abandon(t *testing.T) {
	t.Parallel()

	t.Run("pending_payment_is_cancelled", func(t *testing.T) {
		t.Parallel()

		p := &fakeProtocol{}
		flow, session := startFlow(t, p, time.Hour, nil)

		if err := flow.Abandon(context.Background()); err != nil {
			t.Fatalf("Abandon() error = %v", err)
		}
		if len(p.cancelled) != 1 || p.cancelled[0] != "pay-1" {
			t.Errorf("expected cancel of pay-1, got %v", p.cancelled)
		}
		if _, ok := session.Current(); ok {
			t.Error("expected session cleared")
		}
	})

	t.Run("conflict_is_ignored", func(t *testing.T) {
		t.Parallel()

		p := &fakeProtocol{cancelErr: apperr.New(apperr.ErrConflict, "payment already processed")}
		flow, _ := startFlow(t, p, time.Hour, nil)

		if err := flow.Abandon(context.Background()); err != nil {
			t.Fatalf("Abandon() error = %v", err)
		}
	})

	t.Run("finished_payment_is_not_cancelled", func(t *testing.T) {
		t.Parallel()

		p := &fakeProtocol{authorize: client.Settled{ProviderReference: "DEMO-1"}}
		flow, session := startFlow(t, p, time.Hour, nil)
		ctx := context.Background()

		if _, err := flow.Pay(ctx, flowCard); err != nil {
			t.Fatalf("Pay() error = %v", err)
		}
		redirect := flow.Redirect()

		if err := flow.Abandon(ctx); err != nil {
			t.Fatalf("Abandon() error = %v", err)
		}
		if len(p.cancelled) != 0 {
			t.Errorf("expected no cancel call, got %v", p.cancelled)
		}
		if _, ok := session.Current(); ok {
			t.Error("expected session cleared")
		}
		select {
		case <-redirect.Done():
		default:
			t.Error("expected pending redirect cancelled")
		}
	})
}

func TestFlow_LateRedirectKeepsNewSession(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})

	p := &fakeProtocol{authorize: client.Settled{ProviderReference: "DEMO-1"}}
	flow, session := startFlow(t, p, time.Millisecond, func(Context) {
		close(entered)
		<-release
	})
	ctx := context.Background()

	if _, err := flow.Pay(ctx, flowCard); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	fired := flow.Redirect()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("redirect did not fire")
	}

	// The timer already fired, so starting over cannot cancel it.
	next, err := flow.Start(ctx, "Phone", decimal.RequireFromString("250.00"), "buyer@example.com")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	close(release)
	<-fired.Done()

	c, ok := session.Current()
	if !ok {
		t.Fatal("late redirect cleared the new session")
	}
	if c.PaymentID != next.PaymentID || c.ProductName != "Phone" || c.Outcome != nil {
		t.Errorf("unexpected context %+v", c)
	}
}
