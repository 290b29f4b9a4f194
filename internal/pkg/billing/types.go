package billing

import "math"

// ProviderBitpay scopes webhook events recorded by this payment method.
const ProviderBitpay = "bitpay"

// roundCents normalizes monetary amounts to 2 decimal places before any
// comparison against invoice prices.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// FinalOutcome is the result of checkout-time finalization.
type FinalOutcome int

const (
	// FinalBlocked: the invoice is still new or has expired; full payment was
	// not completed in time and checkout must not proceed.
	FinalBlocked FinalOutcome = iota
	// FinalPendingConfirmation: payment was sent but not yet confirmed; the
	// order waits in an interim status until a notification arrives.
	FinalPendingConfirmation
	// FinalReceived: the invoice confirmed before checkout completed.
	FinalReceived
)

// FinalResult carries the finalization outcome and, when blocked, the
// buyer-facing message.
type FinalResult struct {
	Outcome FinalOutcome
	Message string
}
