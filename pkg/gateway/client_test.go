package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freshmarket/grocery-backend/pkg/config"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.PaymentsConfig{
		KeyID:          "rzp_test_key",
		KeySecret:      "rzp_test_secret",
		BaseURL:        srv.URL + "/",
		GatewayTimeout: time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestCreateOrderSendsMinorUnitsWithBasicAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		var body CreateOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(14000), body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, 1, body.PaymentCapture)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_Nx1","amount":14000,"currency":"INR","status":"created"}`))
	})

	ref, err := client.CreateOrder(context.Background(), 14000, "INR", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_Nx1", ref)
	assert.Equal(t, "rzp_test_key", client.KeyID())
}

func TestCreateOrderGatewayErrorIsInternal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"description":"Authentication failed"}}`))
	})

	_, err := client.CreateOrder(context.Background(), 100, "INR", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestCreateOrderRejectsMissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount":100}`))
	})
	_, err := client.CreateOrder(context.Background(), 100, "INR", "")
	require.Error(t, err)
}

func TestCreateOrderValidatesAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway should not be called")
	})
	_, err := client.CreateOrder(context.Background(), 0, "INR", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.PaymentsConfig{KeyID: "only-id"})
	require.Error(t, err)

	var nilClient *Client
	_, err = nilClient.CreateOrder(context.Background(), 100, "INR", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentsDisabled))
}
