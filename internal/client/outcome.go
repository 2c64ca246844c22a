package client

// AuthorizationOutcome is the result of Authorize: exactly one of
// ChallengeRequired, Declined or Settled.
type AuthorizationOutcome interface {
	isAuthorizationOutcome()
}

// ChallengeOutcome is the result of VerifyChallenge: Settled or Rejected.
type ChallengeOutcome interface {
	isChallengeOutcome()
}

// ChallengeRequired means the issuer wants a one-time code.
type ChallengeRequired struct {
	BankName string
}

// Declined means the issuer refused the card. The payment is FAILED.
type Declined struct {
	Message string
}

// Settled means the payment was captured.
type Settled struct {
	ProviderReference string
	Message           string
}

// Rejected means the code was not accepted. Status tells whether the
// payment is still awaiting a code.
type Rejected struct {
	Code              string
	Message           string
	RemainingAttempts int
	Status            string
}

// CanRetry reports whether another code may be submitted.
func (r Rejected) CanRetry() bool {
	return r.Status == StatusAuthorized && r.RemainingAttempts > 0
}

func (ChallengeRequired) isAuthorizationOutcome() {}
func (Declined) isAuthorizationOutcome() {}
func (Settled) isAuthorizationOutcome() {}

func (Settled) isChallengeOutcome() {}
func (Rejected) isChallengeOutcome() {}
