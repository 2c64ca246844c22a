// Package checkout drives one buyer's payment through the protocol and
// keeps the single active payment context the steps share.
package checkout

import (
	"sync"

	"github.com/shopspring/decimal"

	"checkout/internal/apperr"
)

var (
	// ErrNoActiveSession is returned when a step needs a payment context
	// and none has been begun.
	ErrNoActiveSession = apperr.New(apperr.ErrConflict, "no active payment session")

	// ErrSessionFinished is returned when a step runs after the outcome
	// was recorded.
	ErrSessionFinished = apperr.New(apperr.ErrConflict, "payment session already has an outcome")
)

// Context is the active payment as the buyer sees it.
type Context struct {
	PaymentID   string
	OrderID     string
	ProductName string
	BuyerEmail  string
	Amount      decimal.Decimal

	// BankName is set once a challenge is required.
	BankName string

	// Outcome is set once the payment reached a terminal status.
	Outcome *Outcome
}

// Outcome is the terminal record shown to the buyer.
type Outcome struct {
	Success           bool
	ProviderReference string
	Code              string
	Message           string
}

// Session holds at most one payment context. It does not enforce single
// flight; callers begin a new context only after the previous one ended.
type Session struct {
	mu      sync.Mutex
	current *Context
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Begin starts a context, replacing any stale one.
func (s *Session) Begin(c Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.BankName = ""
	c.Outcome = nil
	s.current = &c
}

// RecordChallengeBank stores the issuing bank that asked for a code.
func (s *Session) RecordChallengeBank(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoActiveSession
	}
	s.current.BankName = name
	return nil
}

// RecordOutcome stores the terminal outcome. It can be recorded once.
func (s *Session) RecordOutcome(o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoActiveSession
	}
	if s.current.Outcome != nil {
		return ErrSessionFinished
	}
	s.current.Outcome = &o
	return nil
}

// Clear drops the context. It reports whether there was one.
func (s *Session) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := s.current != nil
	s.current = nil
	return had
}

// ClearIf drops the context only if it belongs to paymentID. It reports
// whether it cleared one.
func (s *Session) ClearIf(paymentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.PaymentID != paymentID {
		return false
	}
	s.current = nil
	return true
}

// Current returns a copy of the active context.
func (s *Session) Current() (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Context{}, false
	}
	c := *s.current
	if c.Outcome != nil {
		o := *c.Outcome
		c.Outcome = &o
	}
	return c, true
}
