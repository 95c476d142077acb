package constants

// Tier is the canonical account tier stored in the accounts table.
type Tier string

// Stable values (store these exact strings in DB).
const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
)

// ReceiptStatus tracks the payment-confirmation state of an account.
// There is no verified payment callback; SELF_REPORTED is trust-based.
type ReceiptStatus string

const (
	ReceiptStatusNone         ReceiptStatus = "NONE"
	ReceiptStatusPending      ReceiptStatus = "PENDING"       // waiting for admin review
	ReceiptStatusSelfReported ReceiptStatus = "SELF_REPORTED" // user clicked "I already paid"
	ReceiptStatusApproved     ReceiptStatus = "APPROVED"      // admin-approved
)

// FreeTierLimit is the number of extraction image-units a FREE account
// may consume before premium status is required.
const FreeTierLimit = 10
