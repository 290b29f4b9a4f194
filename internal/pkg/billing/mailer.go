package billing

import "github.com/arttus/uc-bitpay/internal/pkg/mail"

// Mailer abstracts outbound mail so tests can capture operator alerts.
type Mailer interface {
	Send(to, subject, body string) error
}

type smtpMailer struct{}

// NewSMTPMailer returns the production mailer backed by the mail package.
func NewSMTPMailer() Mailer {
	return smtpMailer{}
}

func (smtpMailer) Send(to, subject, body string) error {
	return mail.SendMail(to, subject, body)
}
