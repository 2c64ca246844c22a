package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/apperr"
	"checkout/internal/client"
)

// Protocol is the subset of the protocol client the flow drives.
type Protocol interface {
	CreateOrder(ctx context.Context, productName string, amount decimal.Decimal, email string) (*client.Order, error)
	Authorize(ctx context.Context, paymentID string, card client.Card) (client.AuthorizationOutcome, error)
	VerifyChallenge(ctx context.Context, paymentID, otp string) (client.ChallengeOutcome, error)
	Cancel(ctx context.Context, paymentID, reason string) (*client.Payment, error)
}

var _ Protocol = (*client.Client)(nil)

// Flow walks one buyer from order to outcome. After a terminal outcome the
// session is cleared when the redirect delay elapses.
type Flow struct {
	protocol      Protocol
	session       *Session
	redirectDelay time.Duration
	onRedirect    func(Context)

	mu       sync.Mutex
	redirect *Redirect
}

// NewFlow creates a flow. onRedirect, if set, receives the finished context
// just before it is cleared.
func NewFlow(protocol Protocol, session *Session, redirectDelay time.Duration, onRedirect func(Context)) *Flow {
	return &Flow{
		protocol:      protocol,
		session:       session,
		redirectDelay: redirectDelay,
		onRedirect:    onRedirect,
	}
}

// Start creates an order and begins a session for its payment. Any pending
// redirect from a previous payment is cancelled.
func (f *Flow) Start(ctx context.Context, productName string, amount decimal.Decimal, email string) (Context, error) {
	order, err := f.protocol.CreateOrder(ctx, productName, amount, email)
	if err != nil {
		return Context{}, err
	}

	f.cancelRedirect()
	f.session.Begin(Context{
		PaymentID:   order.PaymentID,
		OrderID:     order.OrderID,
		ProductName: productName,
		BuyerEmail:  email,
		Amount:      order.Amount,
	})

	c, _ := f.session.Current()
	return c, nil
}

// Pay authorizes the active payment with card.
func (f *Flow) Pay(ctx context.Context, card client.Card) (client.AuthorizationOutcome, error) {
	c, err := f.active()
	if err != nil {
		return nil, err
	}

	outcome, err := f.protocol.Authorize(ctx, c.PaymentID, card)
	if err != nil {
		return nil, err
	}

	switch o := outcome.(type) {
	case client.ChallengeRequired:
		err = f.session.RecordChallengeBank(o.BankName)
	case client.Declined:
		err = f.finish(c.PaymentID, Outcome{Code: "DECLINED", Message: o.Message})
	case client.Settled:
		err = f.finish(c.PaymentID, Outcome{Success: true, ProviderReference: o.ProviderReference, Message: o.Message})
	default:
		err = fmt.Errorf("unhandled authorization outcome %T", outcome)
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Verify submits the one-time code for the active payment. A rejection that
// still allows another code leaves the session open.
func (f *Flow) Verify(ctx context.Context, code string) (client.ChallengeOutcome, error) {
	c, err := f.active()
	if err != nil {
		return nil, err
	}

	outcome, err := f.protocol.VerifyChallenge(ctx, c.PaymentID, code)
	if err != nil {
		return nil, err
	}

	switch o := outcome.(type) {
	case client.Settled:
		err = f.finish(c.PaymentID, Outcome{Success: true, ProviderReference: o.ProviderReference, Message: o.Message})
	case client.Rejected:
		if !o.CanRetry() {
			err = f.finish(c.PaymentID, Outcome{Code: o.Code, Message: o.Message})
		}
	default:
		err = fmt.Errorf("unhandled challenge outcome %T", outcome)
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Abandon cancels a payment that has no outcome yet and clears the session.
func (f *Flow) Abandon(ctx context.Context) error {
	f.cancelRedirect()

	c, ok := f.session.Current()
	if !ok {
		return ErrNoActiveSession
	}
	defer f.session.Clear()

	if c.Outcome != nil {
		return nil
	}
	if _, err := f.protocol.Cancel(ctx, c.PaymentID, "abandoned by buyer"); err != nil && !errors.Is(err, apperr.ErrConflict) {
		return err
	}
	return nil
}

// Redirect returns the pending redirect, or nil.
func (f *Flow) Redirect() *Redirect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redirect
}

func (f *Flow) active() (Context, error) {
	c, ok := f.session.Current()
	if !ok {
		return Context{}, ErrNoActiveSession
	}
	if c.Outcome != nil {
		return Context{}, ErrSessionFinished
	}
	return c, nil
}

// finish records the outcome and arms the redirect that clears it. The
// redirect only touches the payment it was armed for.
func (f *Flow) finish(paymentID string, o Outcome) error {
	if err := f.session.RecordOutcome(o); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.redirect != nil {
		f.redirect.Cancel()
	}
	f.redirect = ScheduleRedirect(f.redirectDelay, func() {
		c, ok := f.session.Current()
		if !ok || c.PaymentID != paymentID {
			return
		}
		if f.onRedirect != nil {
			f.onRedirect(c)
		}
		if f.session.ClearIf(paymentID) {
			log.Printf("Checkout session cleared: payment=%s", paymentID)
		}
	})
	return nil
}

func (f *Flow) cancelRedirect() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.redirect != nil {
		f.redirect.Cancel()
		f.redirect = nil
	}
}
