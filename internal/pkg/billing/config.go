package billing

import (
	"fmt"
	"strings"

	"github.com/arttus/uc-bitpay/internal/pkg/env"
	"github.com/go-playground/validator/v10"
)

// Config carries every setting the payment core reads. Components receive it
// at construction; nothing in this package reads global settings directly.
type Config struct {
	// CurrentAPIKey authenticates invoice creation and notifications.
	CurrentAPIKey string `validate:"required"`
	// PriorAPIKey is retained so notifications for invoices created before a
	// key rotation can still be verified. May be empty.
	PriorAPIKey string

	// AlertEmail receives operator alerts (invalid API keys, invalid or
	// unrecognized invoice statuses).
	AlertEmail string `validate:"required,email"`
	// NotifyEmail is attached to created invoices when NotifyEmailActive is
	// set, so bitpay mails invoice updates directly.
	NotifyEmail       string `validate:"omitempty,email"`
	NotifyEmailActive bool
	// CopyNotifyEmails sends a copy of each handled notification to the
	// alert address.
	CopyNotifyEmails bool
	// FullNotify requests notifications for every invoice status change
	// instead of only the upgrade to confirmed.
	FullNotify bool

	// Currency is the store currency code invoices are priced in.
	Currency string `validate:"required,len=3,uppercase"`
	// Physical marks whether purchases generally involve physical goods.
	Physical bool
	// TxnSpeed controls how quickly bitpay reports an invoice as confirmed.
	TxnSpeed string `validate:"required,oneof=low medium high"`

	// BaseURL is the public store base URL used to build the notification
	// endpoint handed to bitpay.
	BaseURL string `validate:"omitempty,url"`
	// RedirectURL is where buyers land after paying the invoice.
	RedirectURL string `validate:"omitempty,url"`
}

// NotificationURL is the webhook endpoint registered on created invoices.
func (c Config) NotificationURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/bitpay/notifications"
}

// ConfigFromEnv loads and validates the payment configuration.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		CurrentAPIKey:     strings.TrimSpace(env.GetEnv("BITPAY_CURRENT_API_KEY", "")),
		PriorAPIKey:       strings.TrimSpace(env.GetEnv("BITPAY_PRIOR_API_KEY", "")),
		AlertEmail:        strings.TrimSpace(env.GetEnv("BITPAY_ALERT_EMAIL", "")),
		NotifyEmail:       strings.TrimSpace(env.GetEnv("BITPAY_NOTIFY_EMAIL", "")),
		NotifyEmailActive: env.GetEnv("BITPAY_NOTIFY_EMAIL_ACTIVE", "false") == "true",
		CopyNotifyEmails:  env.GetEnv("BITPAY_COPY_NOTIFY_EMAILS", "false") == "true",
		FullNotify:        env.GetEnv("BITPAY_FULL_NOTIFY", "false") == "true",
		Currency:          strings.ToUpper(strings.TrimSpace(env.GetEnv("STORE_CURRENCY", "USD"))),
		Physical:          env.GetEnv("BITPAY_PHYSICAL", "false") == "true",
		TxnSpeed:          strings.ToLower(strings.TrimSpace(env.GetEnv("BITPAY_TXN_SPEED", "low"))),
		BaseURL:           strings.TrimRight(strings.TrimSpace(env.GetEnv("PUBLIC_DOMAIN", "")), "/"),
		RedirectURL:       strings.TrimSpace(env.GetEnv("BITPAY_REDIRECT_URL", "")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("bitpay configuration invalid: %w", err)
	}
	return cfg, nil
}
