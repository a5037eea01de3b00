package payment_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"buildmarket/internal/payment"

	"github.com/stretchr/testify/require"
)

func newGateway(endpoint string, maxRetries int) *payment.HTTPGateway {
	return payment.NewHTTPGateway(endpoint, 2*time.Second, maxRetries, log.New(io.Discard, "", 0))
}

func TestInitiateSplitPayment(t *testing.T) {
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("Idempotency-Key"))

		var req payment.InitiateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "order-7", req.OrderRef)
		require.Equal(t, int64(10000), req.Amount)

		json.NewEncoder(w).Encode(payment.Session{PaymentURL: "https://pay.example/s1", TxRef: "tx-1"})
	}))
	defer srv.Close()

	gw := newGateway(srv.URL, 2)
	session, err := gw.InitiateSplitPayment(context.Background(), payment.InitiateRequest{
		OrderRef:       "order-7",
		Amount:         10000,
		Currency:       "USD",
		IdempotencyKey: "settle:7",
	})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/s1", session.PaymentURL)
	require.Equal(t, "tx-1", session.TxRef)
	require.Equal(t, "settle:7", gotKey.Load())
}

func TestInitiateSplitPaymentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(payment.Session{PaymentURL: "https://pay.example/s2", TxRef: "tx-2"})
	}))
	defer srv.Close()

	gw := newGateway(srv.URL, 3)
	session, err := gw.InitiateSplitPayment(context.Background(), payment.InitiateRequest{
		OrderRef: "order-8", Amount: 500, Currency: "USD", IdempotencyKey: "settle:8",
	})
	require.NoError(t, err)
	require.Equal(t, "tx-2", session.TxRef)
	require.Equal(t, int32(2), calls.Load())
}

func TestInitiateSplitPaymentExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := newGateway(srv.URL, 2)
	_, err := gw.InitiateSplitPayment(context.Background(), payment.InitiateRequest{
		OrderRef: "order-9", Amount: 500, Currency: "USD", IdempotencyKey: "settle:9",
	})
	require.ErrorIs(t, err, payment.ErrUnavailable)
	// Initial attempt plus two retries.
	require.Equal(t, int32(3), calls.Load())
}

func TestInitiateSplitPaymentRejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown currency", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	gw := newGateway(srv.URL, 3)
	_, err := gw.InitiateSplitPayment(context.Background(), payment.InitiateRequest{
		OrderRef: "order-10", Amount: 500, Currency: "XXX", IdempotencyKey: "settle:10",
	})
	require.ErrorIs(t, err, payment.ErrRejected)
	require.Equal(t, int32(1), calls.Load())
}
