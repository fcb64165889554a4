// Package status maps the provider's status vocabulary onto the canonical
// payment status enum.
package status

import "strings"

type Status string

const (
	Pending  Status = "pending"
	Paid     Status = "paid"
	Canceled Status = "canceled"
	Unknown  Status = "unknown"
)

var classification = map[string]Status{
	// paid-equivalent
	"paid":       Paid,
	"approved":   Paid,
	"confirmed":  Paid,
	"completed":  Paid,
	"success":    Paid,
	"succeeded":  Paid,
	"successful": Paid,
	"settled":    Paid,
	"paid_out":   Paid,
	"pago":       Paid,
	"aprovado":   Paid,
	"concluido":  Paid,
	"concluído":  Paid,

	// pending-equivalent
	"pending":    Pending,
	"created":    Pending,
	"waiting":    Pending,
	"processing": Pending,
	"criado":     Pending,
	"aguardando": Pending,

	// canceled-equivalent
	"canceled":  Canceled,
	"cancelled": Canceled,
	"refused":   Canceled,
	"expired":   Canceled,
	"cancelado": Canceled,
	"recusado":  Canceled,
	"expirado":  Canceled,
}

// Normalize maps a raw provider status token onto the canonical enum. Empty
// input means the provider said nothing yet and normalizes to Pending.
// Unrecognized tokens become Unknown rather than Pending so that new provider
// vocabulary shows up in the breadcrumbs instead of being silently absorbed.
func Normalize(raw string) Status {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return Pending
	}

	if s, ok := classification[token]; ok {
		return s
	}
	return Unknown
}

// Terminal reports whether s is a sticky final state that a later pending or
// unknown report must not overwrite.
func Terminal(s Status) bool {
	return s == Paid || s == Canceled
}
