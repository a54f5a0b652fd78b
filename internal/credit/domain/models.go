package domain

import "math"

// Namespace is the document namespace holding an account's credit ledger.
const Namespace = "credits"

// State is the persisted credit ledger of one account.
type State struct {
	Balance   int64 `json:"balance"`
	AutoTopUp bool  `json:"auto_top_up"`
}

type Reason string

const (
	ReasonOK              Reason = "ok"
	ReasonAllowlisted     Reason = "allowlisted"
	ReasonZeroAmount      Reason = "zero_amount"
	ReasonInsufficient    Reason = "insufficient"
	ReasonReplenishFailed Reason = "replenish_failed"
)

// ConsumeResult is the outcome of a metered action. A denial is reported with
// OK false and never as an error.
type ConsumeResult struct {
	OK     bool   `json:"ok"`
	State  State  `json:"state"`
	Reason Reason `json:"reason"`
}

// NormalizeAmount floors a caller supplied amount to a non-negative integer.
func NormalizeAmount(amount float64) int64 {
	if math.IsNaN(amount) || amount <= 0 {
		return 0
	}
	if amount >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(amount))
}

// ClampAmount maps negative amounts to zero.
func ClampAmount(amount int64) int64 {
	if amount < 0 {
		return 0
	}
	return amount
}
