package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptmarket/api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGatewayCreateCheckoutSession(t *testing.T) {
	ctx := context.Background()

	params := CheckoutParams{
		ProductID:   "prod-123",
		ProductName: "ChatGPT Marketing Pack",
		AmountCents: 2900,
		Currency:    "usd",
		SuccessURL:  "http://localhost:3000/purchase/success?product=prod-123",
		CancelURL:   "http://localhost:3000/products/prod-123",
	}

	t.Run("posts a form-encoded request and decodes the session", func(t *testing.T) {
		var captured *http.Request
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r
			json.NewEncoder(w).Encode(CheckoutSession{
				ID:  "cs_test_123",
				URL: "https://pay.example.com/cs_test_123",
			})
		}))
		defer server.Close()

		gateway := NewHTTPGateway(&config.PaymentConfig{
			GatewayURL: server.URL,
			SecretKey:  "sk_test_secret",
		})

		session, err := gateway.CreateCheckoutSession(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "cs_test_123", session.ID)
		assert.Equal(t, "https://pay.example.com/cs_test_123", session.URL)

		require.NotNil(t, captured)
		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "/v1/checkout/sessions", captured.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", captured.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", captured.Header.Get("Content-Type"))

		assert.Equal(t, "payment", captured.PostForm.Get("mode"))
		assert.Equal(t, "usd", captured.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, params.ProductName, captured.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "2900", captured.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "1", captured.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "prod-123", captured.PostForm.Get("metadata[product_id]"))
		assert.Equal(t, params.SuccessURL, captured.PostForm.Get("success_url"))
		assert.Equal(t, params.CancelURL, captured.PostForm.Get("cancel_url"))
	})

	t.Run("reports a non-200 response as an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		}))
		defer server.Close()

		gateway := NewHTTPGateway(&config.PaymentConfig{GatewayURL: server.URL, SecretKey: "sk"})

		_, err := gateway.CreateCheckoutSession(ctx, params)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
	})

	t.Run("reports an unreachable gateway", func(t *testing.T) {
		gateway := NewHTTPGateway(&config.PaymentConfig{GatewayURL: "http://127.0.0.1:1", SecretKey: "sk"})

		_, err := gateway.CreateCheckoutSession(ctx, params)
		assert.Error(t, err)
	})
}
