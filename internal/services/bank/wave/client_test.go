package wave

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(&Config{
		BaseURL:    server.URL,
		APIKey:     "test-api-key",
		MerchantID: "merchant-1",
		Currency:   "XOF",
	})
	return client, server
}

func TestClient_CreateCheckout(t *testing.T) {
	var gotAuth string
	var gotReq CheckoutRequest

	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(CheckoutSession{
			ID:              "cs_123",
			ClientReference: gotReq.ClientReference,
			Status:          "open",
		})
	})
	defer server.Close()

	session, err := client.CreateCheckout(context.Background(), &CheckoutRequest{
		Amount:          decimal.NewFromInt(5000),
		ClientReference: "PAY-20260315-ABCDEF12",
		Mobile:          "+221771234567",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "open", session.Status)

	// Defaults fill in from the client config.
	assert.Equal(t, "XOF", gotReq.Currency)
	assert.Equal(t, "merchant-1", gotReq.MerchantID)
}

func TestClient_GetCheckout(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "PAY-1", r.URL.Query().Get("client_reference"))

		json.NewEncoder(w).Encode(CheckoutSession{
			ID:              "cs_456",
			ClientReference: "PAY-1",
			Status:          "complete",
			TransactionID:   "txn_789",
		})
	})
	defer server.Close()

	session, err := client.GetCheckout(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "complete", session.Status)
	assert.Equal(t, "txn_789", session.TransactionID)
}

func TestClient_ErrorStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer server.Close()

	_, err := client.GetCheckout(context.Background(), "PAY-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Refund(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/PAY-1/refund", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	assert.NoError(t, client.Refund(context.Background(), "PAY-1"))
}
