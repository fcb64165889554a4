package code

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"redemption-service/internal/apperror"
	"redemption-service/internal/kv"
	"redemption-service/internal/payment"
	"redemption-service/internal/status"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

var (
	redeemSuccessCounter  = metrics.GetOrCreateCounter(`code_redeem_total{result="redeemed"}`)
	redeemNotFoundCounter = metrics.GetOrCreateCounter(`code_redeem_total{result="not_found"}`)
	redeemUsedCounter     = metrics.GetOrCreateCounter(`code_redeem_total{result="already_used"}`)
	redeemUnpaidCounter   = metrics.GetOrCreateCounter(`code_redeem_total{result="not_paid"}`)
)

func usedKey(code string) string {
	return fmt.Sprintf("code:%s:used", code)
}

// Redemption is the successful outcome of consuming a code.
type Redemption struct {
	ID     string        `json:"id"`
	Status status.Status `json:"status"`
}

// Redeemer validates and consumes redemption codes exactly once.
type Redeemer struct {
	store   kv.Store
	records *payment.RecordStore
	logger  *slog.Logger
}

func NewRedeemer(store kv.Store, records *payment.RecordStore, logger *slog.Logger) *Redeemer {
	return &Redeemer{store: store, records: records, logger: logger}
}

// Redeem checks the presented code against its payment and marks it consumed.
// The consumption itself is a single conditional write against the store, so
// two near-simultaneous attempts yield exactly one success and one conflict.
// A client that timed out mid-redeem can safely retry and observe the
// already-used outcome.
func (r *Redeemer) Redeem(ctx context.Context, code string) (*Redemption, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		redeemNotFoundCounter.Inc()
		return nil, errors.Wrap(apperror.ErrNotFound, "empty code")
	}

	canonicalID, found, err := r.store.Get(ctx, bindingKey(code))
	if err != nil {
		return nil, errors.Wrap(apperror.ErrUpstream, err.Error())
	}
	if !found || canonicalID == "" {
		redeemNotFoundCounter.Inc()
		return nil, errors.Wrapf(apperror.ErrNotFound, "code %s", code)
	}

	used, found, err := r.store.Get(ctx, usedKey(code))
	if err != nil {
		return nil, errors.Wrap(apperror.ErrUpstream, err.Error())
	}
	if found && used == "1" {
		redeemUsedCounter.Inc()
		return nil, errors.Wrapf(apperror.ErrConflict, "code %s", code)
	}

	paymentStatus, err := r.records.GetStatus(ctx, canonicalID)
	if err != nil {
		return nil, errors.Wrap(apperror.ErrUpstream, err.Error())
	}
	if paymentStatus != status.Paid {
		redeemUnpaidCounter.Inc()
		return nil, errors.Wrapf(apperror.ErrNotAuthorized, "payment %s is %s", canonicalID, paymentStatus)
	}

	// The critical section: whoever writes the used marker wins.
	consumed, err := r.store.SetIfAbsent(ctx, usedKey(code), "1")
	if err != nil {
		return nil, errors.Wrap(apperror.ErrUpstream, err.Error())
	}
	if !consumed {
		redeemUsedCounter.Inc()
		return nil, errors.Wrapf(apperror.ErrConflict, "code %s", code)
	}

	r.logger.InfoContext(ctx, "Code redeemed", "id", canonicalID)
	redeemSuccessCounter.Inc()
	return &Redemption{ID: canonicalID, Status: paymentStatus}, nil
}
