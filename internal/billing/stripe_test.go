package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/magabrotheeeer/menoease/internal/models"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload []byte, secret string, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	require.NoError(t, err)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(id, typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2023-10-16","created":1715760000,"type":%q,"data":{"object":%s}}`, id, typ, object))
}

const subscriptionObject = `{
	"id": "sub_123",
	"object": "subscription",
	"customer": "cus_123",
	"status": "active",
	"start_date": 1715000000,
	"current_period_end": 1717600000,
	"trial_end": null,
	"cancel_at_period_end": true,
	"items": {"object": "list", "data": [{"id": "si_1", "price": {
		"id": "price_premium_y",
		"unit_amount": 9900,
		"metadata": {"tier_code": "premium"},
		"recurring": {"interval": "year"}
	}}]}
}`

func TestVerifyEvent_Signature(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := eventJSON("evt_1", models.EventSubscriptionUpdated, subscriptionObject)

	tests := []struct {
		name      string
		signature string
		wantErr   error
	}{
		{name: "valid", signature: sign(t, payload, testSecret, time.Now())},
		{name: "missing", signature: "", wantErr: ErrMissingSignature},
		{name: "wrong secret", signature: sign(t, payload, "whsec_other", time.Now()), wantErr: ErrInvalidSignature},
		{name: "stale timestamp", signature: sign(t, payload, testSecret, time.Now().Add(-time.Hour)), wantErr: ErrInvalidSignature},
		{name: "garbage", signature: "t=abc,v1=zzz", wantErr: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.VerifyEvent(payload, tt.signature)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "evt_1", ev.ID)
		})
	}
}

func TestVerifyEvent_TamperedBody(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := eventJSON("evt_1", models.EventSubscriptionUpdated, subscriptionObject)
	sig := sign(t, payload, testSecret, time.Now())

	tampered := []byte(strings.Replace(string(payload), "premium", "professional", 1))
	_, err := c.VerifyEvent(tampered, sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyEvent_ParsesSubscription(t *testing.T) {
	c := New("sk_test", testSecret)
	payload := eventJSON("evt_2", models.EventSubscriptionCreated, subscriptionObject)

	ev, err := c.VerifyEvent(payload, sign(t, payload, testSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, models.EventSubscriptionCreated, ev.Type)
	require.NotNil(t, ev.Subscription)
	sub := ev.Subscription
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "cus_123", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_premium_y", sub.PriceID)
	assert.Equal(t, "premium", sub.PriceTierCode)
	assert.Equal(t, int64(9900), sub.UnitAmount)
	assert.Equal(t, models.PeriodYearly, sub.Period())
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1717600000, 0).UTC(), *sub.CurrentPeriodEnd)
	assert.Nil(t, sub.TrialEnd)
}

func TestParseEvent_Kinds(t *testing.T) {
	c := New("sk_test", testSecret)

	t.Run("checkout with client reference", func(t *testing.T) {
		obj := `{"id":"cs_1","object":"checkout.session","client_reference_id":"user-1","customer":"cus_9","subscription":"sub_9","metadata":{"tier_code":"basic"}}`
		payload := eventJSON("evt_c", models.EventCheckoutCompleted, obj)
		ev, err := c.VerifyEvent(payload, sign(t, payload, testSecret, time.Now()))
		require.NoError(t, err)
		require.NotNil(t, ev.Checkout)
		assert.Equal(t, "user-1", ev.Checkout.UserRef)
		assert.Equal(t, "cus_9", ev.Checkout.CustomerID)
		assert.Equal(t, "sub_9", ev.Checkout.SubscriptionID)
		assert.Equal(t, "basic", ev.Checkout.TierCode)
	})

	t.Run("checkout with metadata user id", func(t *testing.T) {
		obj := `{"id":"cs_2","object":"checkout.session","customer":"cus_9","metadata":{"user_id":"user-2"}}`
		payload := eventJSON("evt_c2", models.EventCheckoutCompleted, obj)
		ev, err := c.VerifyEvent(payload, sign(t, payload, testSecret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, "user-2", ev.Checkout.UserRef)
		assert.Empty(t, ev.Checkout.SubscriptionID)
	})

	t.Run("invoice failed", func(t *testing.T) {
		obj := `{"id":"in_1","object":"invoice","customer":"cus_1","subscription":"sub_1","amount_paid":0,"amount_due":1999,"attempt_count":2,"next_payment_attempt":1716000000,"status_transitions":{"paid_at":null}}`
		payload := eventJSON("evt_i", models.EventInvoicePaymentFailed, obj)
		ev, err := c.VerifyEvent(payload, sign(t, payload, testSecret, time.Now()))
		require.NoError(t, err)
		require.NotNil(t, ev.Invoice)
		assert.Equal(t, "cus_1", ev.Invoice.CustomerID)
		assert.Equal(t, "sub_1", ev.Invoice.SubscriptionID)
		assert.Equal(t, int64(1999), ev.Invoice.AmountDue)
		assert.Equal(t, int64(2), ev.Invoice.AttemptCount)
		require.NotNil(t, ev.Invoice.NextPaymentAttempt)
		assert.Nil(t, ev.Invoice.PaidAt)
	})

	t.Run("unknown type", func(t *testing.T) {
		payload := eventJSON("evt_u", "customer.created", `{"id":"cus_1","object":"customer"}`)
		ev, err := c.VerifyEvent(payload, sign(t, payload, testSecret, time.Now()))
		require.ErrorIs(t, err, ErrUnknownEvent)
		assert.Equal(t, "evt_u", ev.ID)
		assert.Equal(t, "customer.created", ev.Type)
	})

	t.Run("subscription without id", func(t *testing.T) {
		payload := eventJSON("evt_m", models.EventSubscriptionDeleted, `{"object":"subscription","customer":"cus_1"}`)
		_, err := c.VerifyEvent(payload, sign(t, payload, testSecret, time.Now()))
		require.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewWithBackends("sk_test", testSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestGetSubscription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(subscriptionObject))
	})

	sub, err := c.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "price_premium_y", sub.PriceID)
	assert.Equal(t, models.PeriodYearly, sub.Period())
}

func TestGetPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/prices/price_1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"price_1","object":"price","metadata":{"tier_code":"professional"}}`))
	})

	price, err := c.GetPrice(context.Background(), "price_1")
	require.NoError(t, err)
	assert.Equal(t, "professional", price.TierCode)

	_, err = c.GetPrice(context.Background(), "price_missing")
	require.Error(t, err)
}
