package domain

import (
	"errors"

	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
)

const (
	MetadataType     = "auto_top_up"
	idempotencyScope = "auto_top_up:"
)

var (
	ErrProcessorNotConfigured = errors.New("processor_not_configured")
	ErrNoEmail                = errors.New("no_email")
	ErrNoPaymentMethod        = errors.New("no_payment_method")
	ErrPriceUnavailable       = errors.New("price_unavailable")
	ErrTopUpInProgress        = creditdomain.ErrReplenishInProgress
)

// Packages returns how many credit packages cover needed given balance,
// rounded up and clamped to [1, maxPackages].
func Packages(needed, balance, packageCredits, maxPackages int64) int64 {
	if packageCredits <= 0 || maxPackages <= 0 {
		return 1
	}
	shortfall := needed - balance
	if shortfall < 0 {
		shortfall = 0
	}
	packages := shortfall / packageCredits
	if shortfall%packageCredits != 0 {
		packages++
	}
	if packages < 1 {
		packages = 1
	}
	if packages > maxPackages {
		packages = maxPackages
	}
	return packages
}

// IdempotencyKey scopes a processor charge to one top-up attempt.
func IdempotencyKey(topUpID string) string {
	return idempotencyScope + topUpID
}
