package billing

import (
	"errors"
	"fmt"
	"log"

	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
)

// AuthenticateNotification verifies a raw notification payload against the
// current API key and, if verification fails with an authentication error,
// retries once with the prior key. This keeps notifications for invoices
// created before a key rotation verifiable. If both keys fail, exactly one
// "invalid API key" alert goes to the operator and the notification is
// dropped; bitpay retries delivery on its own schedule.
func (s *Service) AuthenticateNotification(payload []byte) (*bitpay.Notification, error) {
	n, err := s.gateway.VerifyNotification(payload, s.cfg.CurrentAPIKey)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, bitpay.ErrAuthentication) {
		// Malformed payload, not a key problem.
		return nil, err
	}

	if s.cfg.PriorAPIKey != "" {
		n, retryErr := s.gateway.VerifyNotification(payload, s.cfg.PriorAPIKey)
		if retryErr == nil {
			return n, nil
		}
		if !errors.Is(retryErr, bitpay.ErrAuthentication) {
			return nil, retryErr
		}
		err = retryErr
	}

	if mailErr := s.mailer.Send(
		s.cfg.AlertEmail,
		"Bitpay: invalid API key",
		"A bitpay invoice notification could not be authenticated with the current or prior API key. "+
			"Please verify the configured Bitpay API keys.",
	); mailErr != nil {
		log.Printf("bitpay: failed to send invalid API key alert: %v", mailErr)
	}
	return nil, fmt.Errorf("notification rejected: %w", err)
}
