package entity

import (
	"time"

	"github.com/quicksheet-ai/quicksheet/constants"
)

// Account represents a user row in the usage ledger.
type Account struct {
	Identifier    string                  `json:"identifier"`
	UsageCount    int                     `json:"usage_count"`
	Tier          constants.Tier          `json:"tier"`
	ReceiptStatus constants.ReceiptStatus `json:"receipt_status"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// IsPremium reports whether the account is exempt from the free-tier quota.
func (a *Account) IsPremium() bool {
	return a.Tier == constants.TierPremium
}
