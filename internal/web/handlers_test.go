package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"redemption-service/internal/code"
	"redemption-service/internal/config"
	"redemption-service/internal/identity"
	"redemption-service/internal/kv"
	"redemption-service/internal/payment"
	"redemption-service/internal/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	charge    *payment.Charge
	chargeErr error
	txStatus  string
	txErr     error
}

func (g *stubGateway) CreateCharge(context.Context, int64) (*payment.Charge, error) {
	return g.charge, g.chargeErr
}

func (g *stubGateway) GetTransaction(context.Context, string) (string, error) {
	return g.txStatus, g.txErr
}

type stubMessenger struct {
	phones   []string
	messages []string
}

func (m *stubMessenger) SendText(_ context.Context, phone, text string) error {
	m.phones = append(m.phones, phone)
	m.messages = append(m.messages, text)
	return nil
}

type fixture struct {
	handler   http.Handler
	store     kv.Store
	gateway   *stubGateway
	messenger *stubMessenger
}

func newFixture(t *testing.T, webhookCfg config.Webhook) *fixture {
	t.Helper()

	logger := slog.Default()
	store := kv.NewMemoryStore()

	resolver := identity.NewResolver(store, logger)
	records := payment.NewRecordStore(store, logger)
	issuer := code.NewIssuer(config.Code{}, store, records, logger)
	redeemer := code.NewRedeemer(store, records, logger)
	processor := webhook.NewProcessor(resolver, records, store, nil, logger)

	gateway := &stubGateway{
		charge: &payment.Charge{
			CanonicalID: "tx_1",
			Aliases:     []string{"tx_1", "prov_9"},
			Raw:         json.RawMessage(`{"id":"tx_1","qr_code":"00020126..."}`),
		},
	}
	messenger := &stubMessenger{}

	messagingCfg := config.Messaging{Secret: "msg-secret", AccessLink: "https://access.example.com"}

	server := NewServer(gateway, resolver, records, issuer, redeemer,
		webhook.NewAuthenticator(webhookCfg), processor, messenger, messagingCfg, logger)

	return &fixture{
		handler:   server.Router(),
		store:     store,
		gateway:   gateway,
		messenger: messenger,
	}
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestFullRedemptionFlow(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	// create the charge
	w := f.do("POST", "/payments", `{"amount":19.99}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "qr_code")

	// code before payment confirms
	w = f.do("GET", "/payments/tx_1/code", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// provider reports paid under an alias
	w = f.do("POST", "/webhooks/payment?secret=s3cret", `{"transaction_id":"prov_9","status":"approved"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "tx_1", body["id"])
	assert.Equal(t, "paid", body["status"])

	// status readable under any alias
	w = f.do("GET", "/payments/prov_9/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "tx_1", body["id"])
	assert.Equal(t, "paid", body["status"])

	// issuance is idempotent
	w = f.do("GET", "/payments/tx_1/code", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	issued := decodeBody(t, w)["code"].(string)
	require.Len(t, issued, 6)

	w = f.do("GET", "/payments/prov_9/code", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, issued, decodeBody(t, w)["code"])

	// redeem exactly once
	w = f.do("POST", "/codes/redeem", fmt.Sprintf(`{"code":%q}`, issued), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "tx_1", body["id"])

	w = f.do("POST", "/codes/redeem", fmt.Sprintf(`{"code":%q}`, issued), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWebhook_RejectsBadSecretWithoutMutatingState(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	w := f.do("POST", "/webhooks/payment?secret=wrong", `{"id":"tx_1","status":"approved"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// valid id and status in the body must not have been applied
	_, found, err := f.store.Get(context.Background(), "payment:tx_1:status")
	require.NoError(t, err)
	assert.False(t, found)

	// forensic breadcrumb recorded
	_, found, err = f.store.Get(context.Background(), "last_webhook_unauthorized")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWebhook_HeaderTokenChannel(t *testing.T) {
	f := newFixture(t, config.Webhook{ProviderToken: "tok3n"})

	w := f.do("POST", "/webhooks/payment", `{"id":"tx_1","status":"approved"}`,
		map[string]string{webhook.HeaderProviderToken: "tok3n"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_UnconfiguredServerFailsClosed(t *testing.T) {
	f := newFixture(t, config.Webhook{})

	w := f.do("POST", "/webhooks/payment?secret=anything", `{"id":"tx_1","status":"approved"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_MissingIdIsBadRequest(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	w := f.do("POST", "/webhooks/payment?secret=s3cret", `{"status":"approved"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus_PollsProviderWhilePending(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})
	f.gateway.txStatus = "approved"

	require.Equal(t, http.StatusOK, f.do("POST", "/payments", `{}`, nil).Code)

	w := f.do("GET", "/payments/tx_1/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", decodeBody(t, w)["status"])
}

func TestStatus_DegradesToPendingOnProviderError(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})
	f.gateway.txErr = fmt.Errorf("provider down")

	require.Equal(t, http.StatusOK, f.do("POST", "/payments", `{}`, nil).Code)

	w := f.do("GET", "/payments/tx_1/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", decodeBody(t, w)["status"])
}

func TestRedeem_UnknownCodeIsNotFound(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	w := f.do("POST", "/codes/redeem", `{"code":"ZZZZZZ"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessagingInbound_RedeemsCodeAndReplies(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	require.Equal(t, http.StatusOK, f.do("POST", "/payments", `{}`, nil).Code)
	require.Equal(t, http.StatusOK,
		f.do("POST", "/webhooks/payment?secret=s3cret", `{"id":"tx_1","status":"approved"}`, nil).Code)

	w := f.do("GET", "/payments/tx_1/code", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	issued := decodeBody(t, w)["code"].(string)

	inbound := fmt.Sprintf(`{"phone":"+55 27 99999-9999","message":"codigo %s"}`, issued)
	w = f.do("POST", "/messaging/inbound?secret=msg-secret", inbound, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.messenger.messages, 1)
	assert.Equal(t, "5527999999999", f.messenger.phones[0])
	assert.Contains(t, f.messenger.messages[0], "https://access.example.com")

	// second presentation of the same code gets the failure reply
	w = f.do("POST", "/messaging/inbound?secret=msg-secret", inbound, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.messenger.messages, 2)
	assert.Contains(t, f.messenger.messages[1], "inválido")
}

func TestMessagingInbound_RequiresSecret(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	w := f.do("POST", "/messaging/inbound?secret=wrong", `{"phone":"5527999999999","message":"ABC234"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.messenger.messages)
}

func TestMessagingInbound_IgnoresMessagesWithoutCode(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	w := f.do("POST", "/messaging/inbound?secret=msg-secret", `{"phone":"5527999999999","message":"ola"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// help reply, no redemption
	require.Len(t, f.messenger.messages, 1)
	assert.Contains(t, f.messenger.messages[0], "código")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, config.Webhook{Secret: "s3cret"})

	w := f.do("OPTIONS", "/payments", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
