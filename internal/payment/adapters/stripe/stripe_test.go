package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
)

func newTestProcessor(t *testing.T, handler http.HandlerFunc) *Processor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	processor, err := NewFactory().NewProcessor(paymentdomain.ProcessorConfig{
		SecretKey:  "sk_test_123",
		APIBase:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return processor.(*Processor)
}

func TestFactoryRequiresSecret(t *testing.T) {
	if _, err := NewFactory().NewProcessor(paymentdomain.ProcessorConfig{}); !errors.Is(err, paymentdomain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestEnsureCustomerReturnsExisting(t *testing.T) {
	processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			t.Errorf("missing bearer token")
		}
		if r.Method != http.MethodGet || r.URL.Path != "/v1/customers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("email"); got != "owner@example.com" {
			t.Errorf("expected email filter, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"cus_1","email":"owner@example.com"}]}`))
	})

	customer, err := processor.EnsureCustomer(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("ensure customer: %v", err)
	}
	if customer.ID != "cus_1" {
		t.Fatalf("expected cus_1, got %q", customer.ID)
	}
}

func TestEnsureCustomerCreatesWhenMissing(t *testing.T) {
	var created bool
	processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"data":[]}`))
		case http.MethodPost:
			created = true
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostForm.Get("email") != "new@example.com" {
				t.Errorf("expected email in form, got %q", r.PostForm.Get("email"))
			}
			if r.Header.Get("Idempotency-Key") != "customer:new@example.com" {
				t.Errorf("unexpected idempotency key %q", r.Header.Get("Idempotency-Key"))
			}
			_, _ = w.Write([]byte(`{"id":"cus_new","email":"new@example.com"}`))
		}
	})

	customer, err := processor.EnsureCustomer(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("ensure customer: %v", err)
	}
	if !created || customer.ID != "cus_new" {
		t.Fatalf("expected created customer cus_new, got %+v created=%v", customer, created)
	}
}

func TestDefaultPaymentMethod(t *testing.T) {
	tests := []struct {
		name     string
		customer string
		methods  string
		want     string
	}{
		{
			name:     "invoice_settings_id",
			customer: `{"id":"cus_1","invoice_settings":{"default_payment_method":"pm_default"}}`,
			want:     "pm_default",
		},
		{
			name:     "invoice_settings_expanded",
			customer: `{"id":"cus_1","invoice_settings":{"default_payment_method":{"id":"pm_expanded"}}}`,
			want:     "pm_expanded",
		},
		{
			name:     "fallback_to_first_card",
			customer: `{"id":"cus_1","invoice_settings":{"default_payment_method":null}}`,
			methods:  `{"data":[{"id":"pm_card"}]}`,
			want:     "pm_card",
		},
		{
			name:     "none",
			customer: `{"id":"cus_1","invoice_settings":{}}`,
			methods:  `{"data":[]}`,
			want:     "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/customers/cus_1":
					_, _ = w.Write([]byte(tc.customer))
				case "/v1/payment_methods":
					if r.URL.Query().Get("customer") != "cus_1" {
						t.Errorf("expected customer filter")
					}
					_, _ = w.Write([]byte(tc.methods))
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			})

			got, err := processor.DefaultPaymentMethod(context.Background(), "cus_1")
			if err != nil {
				t.Fatalf("default payment method: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestGetPrice(t *testing.T) {
	processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/prices/price_pkg":
			_, _ = w.Write([]byte(`{"id":"price_pkg","unit_amount":2500,"currency":"usd","active":true}`))
		case "/v1/prices/price_old":
			_, _ = w.Write([]byte(`{"id":"price_old","unit_amount":2500,"currency":"usd","active":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price"}}`))
		}
	})

	price, err := processor.GetPrice(context.Background(), "price_pkg")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.UnitAmount != 2500 || price.Currency != "usd" {
		t.Fatalf("unexpected price %+v", price)
	}

	if _, err := processor.GetPrice(context.Background(), "price_old"); !errors.Is(err, paymentdomain.ErrPriceInactive) {
		t.Fatalf("expected inactive price error, got %v", err)
	}

	_, err = processor.GetPrice(context.Background(), "price_missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "resource_missing" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestChargeSendsOffSessionConfirmedIntent(t *testing.T) {
	processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		expect := map[string]string{
			"amount":               "2500",
			"currency":             "usd",
			"customer":             "cus_1",
			"payment_method":       "pm_1",
			"off_session":          "true",
			"confirm":              "true",
			"metadata[type]":       "auto_top_up",
			"metadata[account_id]": "acct_1",
			"metadata[packages]":   "1",
		}
		for key, want := range expect {
			if got := r.PostForm.Get(key); got != want {
				t.Errorf("form %s: expected %q, got %q", key, want, got)
			}
		}
		if r.Header.Get("Idempotency-Key") != "auto_top_up:01HX" {
			t.Errorf("unexpected idempotency key %q", r.Header.Get("Idempotency-Key"))
		}
		_, _ = w.Write([]byte(`{"id":"pi_1","status":"succeeded","amount":2500,"currency":"usd"}`))
	})

	charge, err := processor.Charge(context.Background(), paymentdomain.ChargeRequest{
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		Amount:          2500,
		Currency:        "USD",
		Metadata: map[string]string{
			"type":       "auto_top_up",
			"account_id": "acct_1",
			"packages":   "1",
		},
		IdempotencyKey: "auto_top_up:01HX",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if charge.ID != "pi_1" || charge.Status != "succeeded" {
		t.Fatalf("unexpected charge %+v", charge)
	}
}

func TestChargeRequiresSucceededStatus(t *testing.T) {
	processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pi_2","status":"requires_action","amount":2500,"currency":"usd"}`))
	})

	_, err := processor.Charge(context.Background(), paymentdomain.ChargeRequest{
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		Amount:          2500,
		Currency:        "usd",
	})
	if !errors.Is(err, paymentdomain.ErrChargeNotSucceeded) {
		t.Fatalf("expected charge not succeeded, got %v", err)
	}
}

func TestChargeDeclined(t *testing.T) {
	processor := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card was declined."}}`))
	})

	_, err := processor.Charge(context.Background(), paymentdomain.ChargeRequest{
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		Amount:          2500,
		Currency:        "usd",
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.DeclineCode != "insufficient_funds" {
		t.Fatalf("unexpected decline code %q", apiErr.DeclineCode)
	}
}
