package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"redemption-service/internal/config"
	"redemption-service/internal/payload"

	"github.com/pkg/errors"
)

const defaultGatewayTimeoutMs = 15_000

// idPaths are the places a charge or webhook document may carry the payment
// identifier, in preference order. The first hit becomes the canonical id;
// all hits become aliases.
var idPaths = []payload.Path{
	"id",
	"transaction_id",
	"pix_id",
	"payment_id",
	"data.id",
	"data.transaction_id",
	"data.payment_id",
	"data.pix_id",
}

// statusPaths are the places a provider document may carry the status token.
var statusPaths = []payload.Path{
	"status",
	"data.status",
	"payment.status",
	"pix.status",
}

// IDPaths exposes the identifier probe list for webhook processing.
func IDPaths() []payload.Path { return idPaths }

// StatusPaths exposes the status probe list for webhook processing.
func StatusPaths() []payload.Path { return statusPaths }

// Charge is the provider's representation of a freshly created charge,
// reduced to what reconciliation needs plus the raw document for the caller.
type Charge struct {
	CanonicalID string
	Aliases     []string
	Raw         json.RawMessage
}

// Gateway is the payment provider's charge API client. The provider creates
// charges on POST /api/pix/cashIn and reports transactions on
// GET /api/transactions/{id}, both behind a bearer token.
type Gateway struct {
	baseURL    string
	token      string
	webhookURL string
	client     *http.Client
}

func NewGateway(cfg config.Gateway, webhookSecret string) *Gateway {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultGatewayTimeoutMs
	}

	// The webhook callback address carries the shared secret so the provider
	// can authenticate itself on delivery.
	webhookURL := fmt.Sprintf("%s/webhooks/payment?secret=%s", cfg.AppURL, url.QueryEscape(webhookSecret))

	return &Gateway{
		baseURL:    cfg.URL,
		token:      cfg.Token,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

// CreateCharge creates a charge for amountCents and extracts the canonical id
// and every alias candidate from the provider's response.
func (g *Gateway) CreateCharge(ctx context.Context, amountCents int64) (*Charge, error) {
	request := map[string]any{
		"value":       amountCents,
		"split_rules": []any{},
		"webhook_url": g.webhookURL,
	}

	doc, raw, err := g.post(ctx, g.baseURL+"/api/pix/cashIn", request)
	if err != nil {
		return nil, err
	}

	canonical, ok := payload.Extract(doc, idPaths)
	if !ok {
		return nil, errors.Errorf("gateway response carries no recognized payment id: %s", string(raw))
	}

	var aliases []string
	for _, path := range idPaths {
		if value, ok := payload.Extract(doc, []payload.Path{path}); ok {
			aliases = append(aliases, value)
		}
	}

	return &Charge{CanonicalID: canonical, Aliases: aliases, Raw: raw}, nil
}

// GetTransaction fetches the provider's current view of a transaction and
// returns its raw status token, used as a fallback while a webhook is still
// in flight.
func (g *Gateway) GetTransaction(ctx context.Context, id string) (string, error) {
	u := g.baseURL + "/api/transactions/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "creating transaction request")
	}
	g.setHeaders(req)

	doc, _, err := g.do(req)
	if err != nil {
		return "", err
	}

	rawStatus, _ := payload.Extract(doc, statusPaths)
	return rawStatus, nil
}

func (g *Gateway) post(ctx context.Context, url string, body any) (map[string]any, json.RawMessage, error) {
	payloadBytes, err := json.Marshal(body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encoding gateway request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating gateway request")
	}
	g.setHeaders(req)

	return g.do(req)
}

func (g *Gateway) do(req *http.Request) (map[string]any, json.RawMessage, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "calling gateway")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading gateway response")
	}

	if resp.StatusCode >= 400 {
		return nil, nil, errors.Errorf("gateway error response: %s: %s", resp.Status, string(respBody))
	}

	doc, err := payload.Decode(respBody)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decoding gateway response")
	}

	return doc, respBody, nil
}

func (g *Gateway) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}
