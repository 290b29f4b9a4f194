package billing

import (
	"context"
	"errors"

	"github.com/arttus/uc-bitpay/app/models"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
	"gorm.io/gorm"
)

// ErrUnknownInvoice marks notifications referencing an invoice no local order
// maps to. These are dropped without an operator alert: they legitimately
// occur for replaced (stale) or foreign invoices.
var ErrUnknownInvoice = errors.New("billing: no order for invoice")

// ErrInvoiceCreate marks a failed invoice creation. Checkout surfaces it to
// the buyer as a retryable error.
var ErrInvoiceCreate = errors.New("billing: invoice creation failed")

// Gateway is the remote invoice processor consumed by the payment service.
type Gateway interface {
	CreateInvoice(ctx context.Context, apiKey string, in bitpay.CreateInvoiceRequest) (*bitpay.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID, apiKey string) (*bitpay.Invoice, error)
	VerifyNotification(payload []byte, apiKey string) (*bitpay.Notification, error)
}

// Service reconciles local order state with the lifecycle of bitpay invoices:
// it keeps one valid invoice per order, authenticates inbound notifications,
// and drives guarded order transitions and payment ledger entries.
type Service struct {
	cfg     Config
	repo    Repository
	gateway Gateway
	mailer  Mailer
}

// NewService creates a payment service from injected collaborators.
func NewService(cfg Config, repo Repository, gateway Gateway, mailer Mailer) *Service {
	return &Service{cfg: cfg, repo: repo, gateway: gateway, mailer: mailer}
}

// NewServiceFromDB creates a payment service from a GORM DB handle with the
// production gateway and mailer.
func NewServiceFromDB(db *gorm.DB, cfg Config) *Service {
	return NewService(cfg, NewRepository(db), bitpay.NewClientFromEnv(), NewSMTPMailer())
}

// GetOrderForCheckout loads an order for the checkout handlers.
func (s *Service) GetOrderForCheckout(orderID uint) (*models.Order, error) {
	return s.repo.GetOrder(orderID)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
