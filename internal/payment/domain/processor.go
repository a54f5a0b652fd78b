package domain

import (
	"context"
	"errors"
	"net/http"
)

type Customer struct {
	ID    string
	Email string
}

type Price struct {
	ID         string
	UnitAmount int64
	Currency   string
	Active     bool
}

// ChargeRequest is an off-session charge confirmed immediately against a
// stored payment method.
type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        string
	Description     string
	Metadata        map[string]string
	IdempotencyKey  string
}

type Charge struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

//go:generate mockgen -source=processor.go -destination=./mocks/mock_processor.go -package=mocks

// Processor is the payment provider contract used for automatic top-ups.
type Processor interface {
	Provider() string
	// EnsureCustomer returns the customer registered for email, creating it
	// when absent.
	EnsureCustomer(ctx context.Context, email string) (Customer, error)
	// DefaultPaymentMethod returns an empty id when the customer has none.
	DefaultPaymentMethod(ctx context.Context, customerID string) (string, error)
	GetPrice(ctx context.Context, priceID string) (Price, error)
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
}

type ProcessorConfig struct {
	SecretKey  string
	APIBase    string
	AccountID  string
	HTTPClient *http.Client
}

type ProcessorFactory interface {
	Provider() string
	NewProcessor(cfg ProcessorConfig) (Processor, error)
}

var (
	ErrProviderNotFound       = errors.New("provider_not_found")
	ErrInvalidConfig          = errors.New("invalid_config")
	ErrProcessorNotConfigured = errors.New("processor_not_configured")
	ErrInvalidEmail           = errors.New("invalid_email")
	ErrInvalidCharge          = errors.New("invalid_charge")
	ErrChargeNotSucceeded     = errors.New("charge_not_succeeded")
	ErrPriceInactive          = errors.New("price_inactive")
)
