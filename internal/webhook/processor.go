package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"redemption-service/internal/apperror"
	"redemption-service/internal/identity"
	"redemption-service/internal/kv"
	"redemption-service/internal/message"
	"redemption-service/internal/payload"
	"redemption-service/internal/payment"
	"redemption-service/internal/status"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

var (
	webhookMissingIDCounter = metrics.GetOrCreateCounter(`webhook_events_total{result="missing_id"}`)
	webhookAppliedCounter   = metrics.GetOrCreateCounter(`webhook_events_total{result="applied"}`)
	webhookErrorCounter     = metrics.GetOrCreateCounter(`webhook_events_total{result="store_error"}`)

	webhookDurationHistogram = metrics.GetOrCreateHistogram(`webhook_process_duration_milliseconds`)
)

// Publisher emits a normalized payment event after a webhook is applied.
type Publisher interface {
	Publish(ctx context.Context, event message.PaymentEvent)
}

// Result is the outcome of a processed webhook.
type Result struct {
	ID     string        `json:"id"`
	Status status.Status `json:"status"`
}

// Processor is the webhook-application pipeline: probe the document for id
// and status, resolve the id to canonical form, normalize the status and
// apply it idempotently to the payment record.
type Processor struct {
	resolver  *identity.Resolver
	records   *payment.RecordStore
	store     kv.Store
	publisher Publisher
	logger    *slog.Logger
}

func NewProcessor(resolver *identity.Resolver, records *payment.RecordStore, store kv.Store, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		resolver:  resolver,
		records:   records,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Process applies one provider callback document. Safe under at-least-once
// delivery: redelivery and out-of-order delivery never regress a terminal
// status.
func (p *Processor) Process(ctx context.Context, doc map[string]any, rawBody []byte) (*Result, error) {
	startTime := time.Now()
	defer func() {
		webhookDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	rawID, ok := payload.Extract(doc, payment.IDPaths())
	if !ok {
		p.logger.WarnContext(ctx, "Webhook payload carries no payment id")
		p.recordBreadcrumb(ctx, "last_webhook_missing_id", rawBody)
		webhookMissingIDCounter.Inc()
		return nil, errors.Wrap(apperror.ErrNotFound, "no payment id in payload")
	}

	canonical, err := p.resolver.Resolve(ctx, rawID)
	if err != nil {
		webhookErrorCounter.Inc()
		return nil, errors.Wrap(apperror.ErrUpstream, err.Error())
	}

	// A webhook may reveal an identifier we have never seen; extend the
	// alias map so later reports under it converge on the same record.
	if rawID != canonical {
		if err := p.resolver.RegisterAliases(ctx, canonical, []string{rawID}); err != nil {
			p.logger.WarnContext(ctx, "Error extending alias map", "alias", rawID, "error", err)
		}
	}

	rawStatus, _ := payload.Extract(doc, payment.StatusPaths())
	normalized := status.Normalize(rawStatus)

	final, err := p.records.ApplyStatus(ctx, canonical, normalized, string(rawBody))
	if err != nil {
		webhookErrorCounter.Inc()
		return nil, errors.Wrap(apperror.ErrUpstream, err.Error())
	}

	p.logger.InfoContext(ctx, "Webhook applied",
		"rawId", rawID, "id", canonical, "rawStatus", rawStatus, "status", final)
	p.recordBreadcrumb(ctx, "last_webhook_ok", rawBody)
	webhookAppliedCounter.Inc()

	if p.publisher != nil {
		p.publisher.Publish(ctx, message.PaymentEvent{
			ID:     canonical,
			Event:  "payment.status",
			Status: string(final),
		})
	}

	return &Result{ID: canonical, Status: final}, nil
}

// RecordRejected keeps a redacted forensic breadcrumb of a failed
// authentication attempt. No payment state is touched.
func (p *Processor) RecordRejected(ctx context.Context, hasSecret, hasToken bool, rawBody []byte) {
	detail, _ := json.Marshal(map[string]any{
		"hasSecret": hasSecret,
		"hasToken":  hasToken,
		"bodyBytes": len(rawBody),
	})
	p.recordBreadcrumb(ctx, "last_webhook_unauthorized", detail)
}

func (p *Processor) recordBreadcrumb(ctx context.Context, key string, value []byte) {
	if err := p.store.Set(ctx, key, string(value)); err != nil {
		p.logger.WarnContext(ctx, "Error writing breadcrumb", "key", key, "error", err)
	}
}
