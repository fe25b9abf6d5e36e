package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/pkg/config"
)

// gatewayTimeout bounds a single checkout call to the payment
// provider. Slow gateways must not pin request goroutines.
const gatewayTimeout = 10 * time.Second

// CheckoutParams describes a single-product purchase to the gateway.
// AmountCents is the price in the currency's minor unit.
type CheckoutParams struct {
	ProductID   string
	ProductName string
	AmountCents int
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the gateway's handle on a started purchase. URL
// is where the buyer completes payment.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentGateway starts hosted checkout sessions with the payment
// provider. Tests substitute a fake; production uses HTTPGateway.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

// HTTPGateway implements PaymentGateway against a Stripe-style HTTP
// API: form-encoded POST, Bearer-token auth, JSON response.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTPGateway creates a gateway client from payment configuration.
func NewHTTPGateway(cfg *config.PaymentConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimSuffix(cfg.GatewayURL, "/"),
		secretKey: cfg.SecretKey,
		client: &http.Client{
			Timeout: gatewayTimeout,
		},
	}
}

// CreateCheckoutSession starts a hosted checkout session for one
// product and returns its ID and redirect URL.
func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", params.Currency)
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(params.AmountCents))
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[product_id]", params.ProductID)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)

	endpoint := g.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Checkout session request failed")
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("product_id", params.ProductID).
			Msg("Payment gateway rejected checkout session")
		return nil, fmt.Errorf("checkout request failed: status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}

	return &session, nil
}
