package message

// PaymentEvent is the normalized event published after a webhook is applied
// to a payment record.
type PaymentEvent struct {
	ID     string `json:"id"`
	Event  string `json:"event"`
	Status string `json:"status"`
}
