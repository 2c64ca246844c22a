package fixtures

import "testing"

func TestTestCards(t *testing.T) {
	t.Parallel()

	cards, err := TestCards()
	if err != nil {
		t.Fatalf("TestCards() error: %v", err)
	}
	if len(cards) != 4 {
		t.Fatalf("expected 4 cards, got %d", len(cards))
	}

	var failing int
	for _, c := range cards {
		if c.ShouldFail {
			failing++
			if c.FailReason == "" {
				t.Errorf("card %s fails without a reason", c.Masked())
			}
		}
		if !c.CommissionRate.IsPositive() {
			t.Errorf("card %s has non-positive commission %s", c.Masked(), c.CommissionRate)
		}
	}
	if failing != 2 {
		t.Errorf("expected 2 failing cards, got %d", failing)
	}
}

func TestParseTestCards_BadRate(t *testing.T) {
	t.Parallel()

	_, err := ParseTestCards([]byte("cards:\n  - number: \"4111111111111111\"\n    commission_rate: \"abc\"\n"))
	if err == nil {
		t.Fatal("expected an error for a malformed commission rate")
	}
}
