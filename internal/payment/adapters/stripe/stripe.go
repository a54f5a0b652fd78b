package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
)

const (
	providerName   = "stripe"
	defaultAPIBase = "https://api.stripe.com"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewProcessor(cfg paymentdomain.ProcessorConfig) (paymentdomain.Processor, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = defaultAPIBase
	}
	if _, err := url.Parse(base); err != nil {
		return nil, paymentdomain.ErrInvalidConfig
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	return &Processor{
		apiKey:    secret,
		apiBase:   base,
		accountID: strings.TrimSpace(cfg.AccountID),
		client:    client,
	}, nil
}

// Processor talks to the Stripe REST API with form-encoded requests.
type Processor struct {
	apiKey    string
	apiBase   string
	accountID string
	client    *http.Client
}

// APIError is a decoded Stripe error response.
type APIError struct {
	StatusCode  int    `json:"-"`
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

func (e *APIError) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "stripe_request_failed"
	}
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (%s)", message, e.Code)
	}
	return "stripe: " + message
}

type stripeErrorResponse struct {
	Error APIError `json:"error"`
}

type stripeCustomer struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	InvoiceSettings struct {
		DefaultPaymentMethod json.RawMessage `json:"default_payment_method"`
	} `json:"invoice_settings"`
}

type stripeList[T any] struct {
	Data []T `json:"data"`
}

type stripePaymentMethod struct {
	ID string `json:"id"`
}

type stripePrice struct {
	ID         string `json:"id"`
	UnitAmount *int64 `json:"unit_amount"`
	Currency   string `json:"currency"`
	Active     bool   `json:"active"`
}

type stripePaymentIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (p *Processor) Provider() string {
	return providerName
}

func (p *Processor) EnsureCustomer(ctx context.Context, email string) (paymentdomain.Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return paymentdomain.Customer{}, paymentdomain.ErrInvalidEmail
	}

	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")
	var existing stripeList[stripeCustomer]
	if err := p.doRequest(ctx, http.MethodGet, "/v1/customers?"+query.Encode(), nil, "", &existing); err != nil {
		return paymentdomain.Customer{}, err
	}
	if len(existing.Data) > 0 && existing.Data[0].ID != "" {
		return paymentdomain.Customer{ID: existing.Data[0].ID, Email: existing.Data[0].Email}, nil
	}

	values := url.Values{}
	values.Set("email", email)
	values.Set("metadata[source]", "creditgate")
	var created stripeCustomer
	if err := p.doRequest(ctx, http.MethodPost, "/v1/customers", values, "customer:"+strings.ToLower(email), &created); err != nil {
		return paymentdomain.Customer{}, err
	}
	if created.ID == "" {
		return paymentdomain.Customer{}, errors.New("stripe_response_invalid")
	}
	return paymentdomain.Customer{ID: created.ID, Email: created.Email}, nil
}

func (p *Processor) DefaultPaymentMethod(ctx context.Context, customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", paymentdomain.ErrInvalidCharge
	}

	var customer stripeCustomer
	if err := p.doRequest(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(customerID), nil, "", &customer); err != nil {
		return "", err
	}
	if id := paymentMethodID(customer.InvoiceSettings.DefaultPaymentMethod); id != "" {
		return id, nil
	}

	query := url.Values{}
	query.Set("customer", customerID)
	query.Set("type", "card")
	query.Set("limit", "1")
	var methods stripeList[stripePaymentMethod]
	if err := p.doRequest(ctx, http.MethodGet, "/v1/payment_methods?"+query.Encode(), nil, "", &methods); err != nil {
		return "", err
	}
	if len(methods.Data) == 0 {
		return "", nil
	}
	return methods.Data[0].ID, nil
}

func (p *Processor) GetPrice(ctx context.Context, priceID string) (paymentdomain.Price, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return paymentdomain.Price{}, paymentdomain.ErrInvalidConfig
	}

	var price stripePrice
	if err := p.doRequest(ctx, http.MethodGet, "/v1/prices/"+url.PathEscape(priceID), nil, "", &price); err != nil {
		return paymentdomain.Price{}, err
	}
	if !price.Active {
		return paymentdomain.Price{}, paymentdomain.ErrPriceInactive
	}
	if price.UnitAmount == nil || *price.UnitAmount <= 0 {
		return paymentdomain.Price{}, paymentdomain.ErrInvalidConfig
	}
	return paymentdomain.Price{
		ID:         price.ID,
		UnitAmount: *price.UnitAmount,
		Currency:   price.Currency,
		Active:     price.Active,
	}, nil
}

func (p *Processor) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.Charge, error) {
	if req.Amount <= 0 || strings.TrimSpace(req.CustomerID) == "" || strings.TrimSpace(req.PaymentMethodID) == "" {
		return paymentdomain.Charge{}, paymentdomain.ErrInvalidCharge
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return paymentdomain.Charge{}, paymentdomain.ErrInvalidCharge
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.Amount, 10))
	values.Set("currency", currency)
	values.Set("customer", req.CustomerID)
	values.Set("payment_method", req.PaymentMethodID)
	values.Set("off_session", "true")
	values.Set("confirm", "true")
	if req.Description != "" {
		values.Set("description", req.Description)
	}
	keys := make([]string, 0, len(req.Metadata))
	for key := range req.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values.Set("metadata["+key+"]", req.Metadata[key])
	}

	var intent stripePaymentIntent
	if err := p.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, req.IdempotencyKey, &intent); err != nil {
		return paymentdomain.Charge{}, err
	}
	if intent.ID == "" {
		return paymentdomain.Charge{}, errors.New("stripe_response_invalid")
	}
	charge := paymentdomain.Charge{
		ID:       intent.ID,
		Status:   intent.Status,
		Amount:   intent.Amount,
		Currency: intent.Currency,
	}
	if intent.Status != "succeeded" {
		return charge, fmt.Errorf("%w: %s", paymentdomain.ErrChargeNotSucceeded, intent.Status)
	}
	return charge, nil
}

func (p *Processor) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, p.apiBase+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if p.accountID != "" {
		req.Header.Set("Stripe-Account", p.accountID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: "stripe_request_failed"}
		}
		stripeErr.Error.StatusCode = resp.StatusCode
		return &stripeErr.Error
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// paymentMethodID accepts either an unexpanded id or an expanded object.
func paymentMethodID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var method stripePaymentMethod
	if err := json.Unmarshal(raw, &method); err == nil {
		return strings.TrimSpace(method.ID)
	}
	return ""
}
