package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arttus/uc-bitpay/app/models"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
	"gorm.io/gorm"
)

type fakeRepo struct {
	orders   map[uint]*models.Order
	invoices map[uint]*models.InvoiceRecord
	payments []models.Payment
	comments []models.OrderComment
	events   map[string]*models.WebhookEvent
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:   make(map[uint]*models.Order),
		invoices: make(map[uint]*models.InvoiceRecord),
		events:   make(map[string]*models.WebhookEvent),
	}
}

func (r *fakeRepo) GetOrder(orderID uint) (*models.Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) SetOrderStatusIfNotIn(orderID uint, status string, excluded ...string) (bool, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, ex := range excluded {
		if o.Status == ex {
			return false, nil
		}
	}
	o.Status = status
	return true, nil
}

func (r *fakeRepo) FindInvoiceByOrder(orderID uint) (*models.InvoiceRecord, error) {
	rec, ok := r.invoices[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) FindInvoiceByInvoiceID(invoiceID string) (*models.InvoiceRecord, error) {
	for _, rec := range r.invoices {
		if rec.InvoiceID == invoiceID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) ReplaceInvoice(rec *models.InvoiceRecord) error {
	cp := *rec
	r.invoices[rec.OrderID] = &cp
	return nil
}

func (r *fakeRepo) DeleteInvoiceByOrder(orderID uint) error {
	delete(r.invoices, orderID)
	return nil
}

func (r *fakeRepo) EnterPayment(p *models.Payment) error {
	r.payments = append(r.payments, *p)
	return nil
}

func (r *fakeRepo) SaveOrderComment(orderID uint, body string) error {
	r.comments = append(r.comments, models.OrderComment{OrderID: orderID, Body: body, Source: "admin"})
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		cp := *stored
		return false, &cp, nil
	}
	r.nextID++
	event.ID = r.nextID
	cp := *event
	r.events[key] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, ev := range r.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeGateway struct {
	invoices map[string]*bitpay.Invoice

	createErr   error
	getErr      error
	createCalls int
	getCalls    int
	created     []bitpay.CreateInvoiceRequest

	// verify maps API key -> notification; keys not present fail with
	// bitpay.ErrAuthentication.
	verify      map[string]*bitpay.Notification
	verifyErr   error
	verifyCalls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		invoices: make(map[string]*bitpay.Invoice),
		verify:   make(map[string]*bitpay.Notification),
	}
}

func (g *fakeGateway) CreateInvoice(_ context.Context, _ string, in bitpay.CreateInvoiceRequest) (*bitpay.Invoice, error) {
	g.createCalls++
	g.created = append(g.created, in)
	if g.createErr != nil {
		return nil, g.createErr
	}
	inv := &bitpay.Invoice{
		ID:       fmt.Sprintf("inv-%d", g.createCalls),
		Status:   bitpay.StatusNew,
		Price:    in.Price,
		Currency: in.Currency,
		URL:      "https://bitpay.example/i/" + fmt.Sprintf("inv-%d", g.createCalls),
	}
	g.invoices[inv.ID] = inv
	return inv, nil
}

func (g *fakeGateway) GetInvoice(_ context.Context, invoiceID, _ string) (*bitpay.Invoice, error) {
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, errors.New("invoice not found")
	}
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) VerifyNotification(_ []byte, apiKey string) (*bitpay.Notification, error) {
	g.verifyCalls = append(g.verifyCalls, apiKey)
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if n, ok := g.verify[apiKey]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, bitpay.ErrAuthentication
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func testConfig() Config {
	return Config{
		CurrentAPIKey: "key-current",
		PriorAPIKey:   "key-prior",
		AlertEmail:    "ops@example.com",
		Currency:      "USD",
		TxnSpeed:      "low",
		BaseURL:       "https://store.example",
	}
}

func newTestService(cfg Config) (*Service, *fakeRepo, *fakeGateway, *fakeMailer) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	mailer := &fakeMailer{}
	return NewService(cfg, repo, gw, mailer), repo, gw, mailer
}
