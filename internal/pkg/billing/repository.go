package billing

import (
	"time"

	"github.com/arttus/uc-bitpay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the payment service.
type Repository interface {
	GetOrder(orderID uint) (*models.Order, error)
	// SetOrderStatusIfNotIn writes the order status unless the current status
	// is in the excluded set. Returns whether the write happened, so callers
	// can tie one-shot side effects to winning the transition.
	SetOrderStatusIfNotIn(orderID uint, status string, excluded ...string) (bool, error)

	FindInvoiceByOrder(orderID uint) (*models.InvoiceRecord, error)
	FindInvoiceByInvoiceID(invoiceID string) (*models.InvoiceRecord, error)
	// ReplaceInvoice atomically removes any existing record for the order and
	// inserts the new one.
	ReplaceInvoice(rec *models.InvoiceRecord) error
	DeleteInvoiceByOrder(orderID uint) error

	EnterPayment(p *models.Payment) error
	SaveOrderComment(orderID uint, body string) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrder(orderID uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.First(&o, orderID).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) SetOrderStatusIfNotIn(orderID uint, status string, excluded ...string) (bool, error) {
	tx := r.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("status NOT IN ?", excluded).
		Update("status", status)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) FindInvoiceByOrder(orderID uint) (*models.InvoiceRecord, error) {
	var rec models.InvoiceRecord
	if err := r.db.Where("order_id = ?", orderID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) FindInvoiceByInvoiceID(invoiceID string) (*models.InvoiceRecord, error) {
	var rec models.InvoiceRecord
	if err := r.db.Where("invoice_id = ?", invoiceID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) ReplaceInvoice(rec *models.InvoiceRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", rec.OrderID).Delete(&models.InvoiceRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
}

func (r *gormRepository) DeleteInvoiceByOrder(orderID uint) error {
	return r.db.Where("order_id = ?", orderID).Delete(&models.InvoiceRecord{}).Error
}

func (r *gormRepository) EnterPayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SaveOrderComment(orderID uint, body string) error {
	return r.db.Create(&models.OrderComment{
		OrderID: orderID,
		Body:    body,
		Source:  "admin",
	}).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
