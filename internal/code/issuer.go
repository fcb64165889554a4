package code

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"redemption-service/internal/apperror"
	"redemption-service/internal/config"
	"redemption-service/internal/kv"
	"redemption-service/internal/payment"
	"redemption-service/internal/status"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

// Alphabet excludes glyphs easily confused when typed from a phone screen
// (I/1, O/0).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultLength      = 6
	defaultMaxAttempts = 10
)

var (
	issueSuccessCounter   = metrics.GetOrCreateCounter(`code_issue_total{result="issued"}`)
	issueExistingCounter  = metrics.GetOrCreateCounter(`code_issue_total{result="existing"}`)
	issueUnpaidCounter    = metrics.GetOrCreateCounter(`code_issue_total{result="not_paid"}`)
	issueExhaustedCounter = metrics.GetOrCreateCounter(`code_issue_total{result="exhausted"}`)
	issueCollisionCounter = metrics.GetOrCreateCounter(`code_issue_collisions_total`)
)

func bindingKey(code string) string {
	return fmt.Sprintf("code:%s", code)
}

// Issuer generates short redemption codes bound to paid payments.
type Issuer struct {
	store       kv.Store
	records     *payment.RecordStore
	length      int
	maxAttempts int
	logger      *slog.Logger
}

func NewIssuer(cfg config.Code, store kv.Store, records *payment.RecordStore, logger *slog.Logger) *Issuer {
	length := cfg.Length
	if length <= 0 {
		length = defaultLength
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Issuer{
		store:       store,
		records:     records,
		length:      length,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Issue returns the code bound to the payment, generating one on first call.
// Only a paid payment gets a code; repeated calls return the same code, so a
// polling client is safe. A fresh candidate claims its slot in the global
// code index atomically, and collisions regenerate up to the attempt bound.
func (i *Issuer) Issue(ctx context.Context, canonicalID string) (string, error) {
	paymentStatus, err := i.records.GetStatus(ctx, canonicalID)
	if err != nil {
		return "", errors.Wrap(apperror.ErrUpstream, err.Error())
	}
	if paymentStatus != status.Paid {
		issueUnpaidCounter.Inc()
		return "", errors.Wrapf(apperror.ErrNotAuthorized, "payment %s is %s", canonicalID, paymentStatus)
	}

	if existing, found, err := i.records.GetCode(ctx, canonicalID); err != nil {
		return "", errors.Wrap(apperror.ErrUpstream, err.Error())
	} else if found && existing != "" {
		issueExistingCounter.Inc()
		return existing, nil
	}

	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		candidate, err := i.generate()
		if err != nil {
			return "", errors.Wrap(apperror.ErrUpstream, err.Error())
		}

		claimed, err := i.store.SetIfAbsent(ctx, bindingKey(candidate), canonicalID)
		if err != nil {
			return "", errors.Wrap(apperror.ErrUpstream, err.Error())
		}
		if !claimed {
			issueCollisionCounter.Inc()
			continue
		}

		// Another issuance for the same payment may have claimed a
		// different code first; the record binding is the tiebreaker.
		bound, err := i.records.BindCode(ctx, canonicalID, candidate)
		if err != nil {
			return "", errors.Wrap(apperror.ErrUpstream, err.Error())
		}

		i.logger.InfoContext(ctx, "Issued redemption code", "id", canonicalID)
		issueSuccessCounter.Inc()
		return bound, nil
	}

	issueExhaustedCounter.Inc()
	return "", errors.Wrapf(apperror.ErrGenerationExhausted, "after %d attempts", i.maxAttempts)
}

func (i *Issuer) generate() (string, error) {
	out := make([]byte, i.length)
	max := big.NewInt(int64(len(Alphabet)))

	for pos := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[pos] = Alphabet[n.Int64()]
	}
	return string(out), nil
}
