// Package fixtures embeds the simulated issuer catalogue used to seed the
// test-card store.
package fixtures

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"checkout/internal/domain"
)

//go:embed testcards.yaml
var testCardsYAML []byte

type catalogue struct {
	Cards []cardEntry `yaml:"cards"`
}

type cardEntry struct {
	Number         string `yaml:"number"`
	Holder         string `yaml:"holder"`
	ExpiryMonth    string `yaml:"expiry_month"`
	ExpiryYear     string `yaml:"expiry_year"`
	CVV            string `yaml:"cvv"`
	BankName       string `yaml:"bank_name"`
	Brand          string `yaml:"brand"`
	CommissionRate string `yaml:"commission_rate"`
	ShouldFail     bool   `yaml:"should_fail"`
	FailReason     string `yaml:"fail_reason"`
}

// TestCards returns the embedded catalogue.
func TestCards() ([]*domain.TestCard, error) {
	return ParseTestCards(testCardsYAML)
}

// ParseTestCards decodes a YAML catalogue.
func ParseTestCards(data []byte) ([]*domain.TestCard, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode test cards: %w", err)
	}

	cards := make([]*domain.TestCard, 0, len(c.Cards))
	for _, e := range c.Cards {
		rate, err := decimal.NewFromString(e.CommissionRate)
		if err != nil {
			return nil, fmt.Errorf("card %s: commission rate: %w", domain.MaskPAN(e.Number), err)
		}
		cards = append(cards, &domain.TestCard{
			Number:         e.Number,
			Holder:         e.Holder,
			ExpiryMonth:    e.ExpiryMonth,
			ExpiryYear:     e.ExpiryYear,
			CVV:            e.CVV,
			BankName:       e.BankName,
			Brand:          e.Brand,
			CommissionRate: rate,
			ShouldFail:     e.ShouldFail,
			FailReason:     e.FailReason,
		})
	}
	return cards, nil
}
