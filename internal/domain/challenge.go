package domain

import "time"

// ChallengeStatus represents the state of a step-up authentication attempt.
type ChallengeStatus string

const (
	ChallengeStatusPending  ChallengeStatus = "PENDING"
	ChallengeStatusVerified ChallengeStatus = "VERIFIED"
	ChallengeStatusExpired  ChallengeStatus = "EXPIRED"
	ChallengeStatusBlocked  ChallengeStatus = "BLOCKED"
)

// Challenge is the one-time-code round trip gating settlement.
type Challenge struct {
	ID         string
	PaymentID  string
	BankName   string
	Code       string
	Status     ChallengeStatus
	Attempts   int
	ExpiresAt  time.Time
	VerifiedAt time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the challenge can no longer be answered at now.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
