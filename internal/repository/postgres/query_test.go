package postgres

import (
	"strings"
	"testing"
)

func TestLatestChallengeQuery(t *testing.T) {
	if q := latestChallengeQuery(false); strings.Contains(q, "FOR UPDATE") {
		t.Errorf("unlocked query should not lock rows: %s", q)
	}
	if q := latestChallengeQuery(true); !strings.HasSuffix(q, "LIMIT 1 FOR UPDATE") {
		t.Errorf("transactional query should lock the selected row: %s", q)
	}
}

func TestNewChallengeRepositoryWithTx_Locks(t *testing.T) {
	if NewChallengeRepository(nil).lock {
		t.Error("pool-bound repository should not lock")
	}
	if !NewChallengeRepositoryWithTx(nil).lock {
		t.Error("transaction-bound repository should lock")
	}
}

func TestPendingOutboxQuery(t *testing.T) {
	if q := pendingOutboxQuery(false); strings.Contains(q, "FOR UPDATE") {
		t.Errorf("unlocked query should not lock rows: %s", q)
	}
	if q := pendingOutboxQuery(true); !strings.HasSuffix(q, "FOR UPDATE SKIP LOCKED") {
		t.Errorf("transactional query should skip locked rows: %s", q)
	}
}
