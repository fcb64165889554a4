package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"redemption-service/internal/kv"
	"redemption-service/internal/status"

	"github.com/VictoriaMetrics/metrics"
)

var (
	statusAppliedCounter   = metrics.GetOrCreateCounter(`payment_status_apply_total{result="applied"}`)
	statusRetainedCounter  = metrics.GetOrCreateCounter(`payment_status_apply_total{result="terminal_retained"}`)
	statusUnchangedCounter = metrics.GetOrCreateCounter(`payment_status_apply_total{result="unchanged"}`)
)

// RecordStore reads and writes a payment's canonical status and metadata on
// top of the key-value gateway.
type RecordStore struct {
	store  kv.Store
	logger *slog.Logger
}

func NewRecordStore(store kv.Store, logger *slog.Logger) *RecordStore {
	return &RecordStore{store: store, logger: logger}
}

func statusKey(id string) string    { return fmt.Sprintf("payment:%s:status", id) }
func codeKey(id string) string      { return fmt.Sprintf("payment:%s:code", id) }
func payloadsKey(id string) string  { return fmt.Sprintf("payment:%s:payloads", id) }
func createdAtKey(id string) string { return fmt.Sprintf("payment:%s:created_at", id) }
func updatedAtKey(id string) string { return fmt.Sprintf("payment:%s:updated_at", id) }

// Initialize records a fresh pending payment. A record that already exists is
// left untouched, so a duplicate charge-creation retry cannot stomp over an
// already-paid payment.
func (s *RecordStore) Initialize(ctx context.Context, canonicalID string) error {
	ok, err := s.store.SetIfAbsent(ctx, statusKey(canonicalID), string(status.Pending))
	if err != nil {
		return err
	}
	if !ok {
		s.logger.InfoContext(ctx, "Payment record already initialized", "id", canonicalID)
		return nil
	}

	s.bestEffortSet(ctx, createdAtKey(canonicalID), time.Now().UTC().Format(time.RFC3339))
	return nil
}

// ApplyStatus applies a normalized webhook status. Terminal states stick:
// once paid or canceled, later pending or unknown reports keep the stored
// value and only land in the breadcrumb trail. The returned status is the
// stored one after application, which makes redelivery of the same webhook a
// no-op with respect to final state.
func (s *RecordStore) ApplyStatus(ctx context.Context, canonicalID string, next status.Status, rawPayload string) (status.Status, error) {
	current, err := s.GetStatus(ctx, canonicalID)
	if err != nil {
		return "", err
	}

	final := next
	switch {
	case status.Terminal(current):
		final = current
		if current != next {
			s.logger.InfoContext(ctx, "Retaining terminal status",
				"id", canonicalID, "stored", current, "reported", next)
			statusRetainedCounter.Inc()
		} else {
			statusUnchangedCounter.Inc()
		}
	case current == next:
		statusUnchangedCounter.Inc()
	default:
		if err := s.store.Set(ctx, statusKey(canonicalID), string(next)); err != nil {
			return "", err
		}
		statusAppliedCounter.Inc()
	}

	// Breadcrumbs are best-effort: status correctness matters more than
	// debug completeness.
	s.appendPayload(ctx, canonicalID, rawPayload)
	s.bestEffortSet(ctx, updatedAtKey(canonicalID), time.Now().UTC().Format(time.RFC3339))

	return final, nil
}

// GetStatus returns the stored status, or Pending for a payment that was
// never initialized.
func (s *RecordStore) GetStatus(ctx context.Context, canonicalID string) (status.Status, error) {
	value, found, err := s.store.Get(ctx, statusKey(canonicalID))
	if err != nil {
		return "", err
	}
	if !found || value == "" {
		return status.Pending, nil
	}
	return status.Status(value), nil
}

// BindCode attaches code to the payment record unless another code won the
// race first, in which case the winner is returned.
func (s *RecordStore) BindCode(ctx context.Context, canonicalID, code string) (string, error) {
	ok, err := s.store.SetIfAbsent(ctx, codeKey(canonicalID), code)
	if err != nil {
		return "", err
	}
	if ok {
		return code, nil
	}

	existing, _, err := s.store.Get(ctx, codeKey(canonicalID))
	if err != nil {
		return "", err
	}
	return existing, nil
}

// GetCode returns the code bound to the payment, if any.
func (s *RecordStore) GetCode(ctx context.Context, canonicalID string) (string, bool, error) {
	return s.store.Get(ctx, codeKey(canonicalID))
}

func (s *RecordStore) appendPayload(ctx context.Context, canonicalID, rawPayload string) {
	if rawPayload == "" {
		return
	}

	key := payloadsKey(canonicalID)
	trail, _, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Error reading payload trail", "id", canonicalID, "error", err)
		return
	}

	if trail != "" {
		trail += "\n"
	}
	s.bestEffortSet(ctx, key, trail+rawPayload)
}

func (s *RecordStore) bestEffortSet(ctx context.Context, key, value string) {
	if err := s.store.Set(ctx, key, value); err != nil {
		s.logger.WarnContext(ctx, "Error writing debug key", "key", key, "error", err)
	}
}
