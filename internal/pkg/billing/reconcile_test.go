package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/arttus/uc-bitpay/app/models"
	"github.com/arttus/uc-bitpay/internal/pkg/bitpay"
)

func TestEnsureInvoice_CreatesWhenNoRecordExists(t *testing.T) {
	svc, repo, gw, _ := newTestService(testConfig())
	order := &models.Order{ID: 100, Total: 50.0, Status: models.OrderStatusPending}
	repo.orders[100] = order

	rec, inv, err := svc.EnsureInvoice(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.createCalls != 1 {
		t.Fatalf("expected one invoice creation, got %d", gw.createCalls)
	}
	if rec.OrderID != 100 || rec.InvoiceID != inv.ID {
		t.Fatalf("record does not match invoice: %+v vs %+v", rec, inv)
	}
	if inv.Price != 50.0 || inv.Currency != "USD" {
		t.Fatalf("invoice priced wrong: %+v", inv)
	}

	stored, err := repo.FindInvoiceByOrder(100)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.InvoiceID != inv.ID {
		t.Fatalf("stored record references %q, want %q", stored.InvoiceID, inv.ID)
	}
}

func TestEnsureInvoice_ReusesValidInvoice(t *testing.T) {
	svc, repo, gw, _ := newTestService(testConfig())
	order := &models.Order{ID: 100, Total: 50.0, Status: models.OrderStatusPending}
	repo.orders[100] = order
	repo.invoices[100] = &models.InvoiceRecord{OrderID: 100, InvoiceID: "inv-live", TxnSpeed: "low"}
	gw.invoices["inv-live"] = &bitpay.Invoice{ID: "inv-live", Status: bitpay.StatusNew, Price: 50.0, Currency: "USD"}

	rec, _, err := svc.EnsureInvoice(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.createCalls != 0 {
		t.Fatalf("valid invoice must be reused, got %d creations", gw.createCalls)
	}
	if rec.InvoiceID != "inv-live" {
		t.Fatalf("expected existing record, got %q", rec.InvoiceID)
	}
}

func TestEnsureInvoice_ReplacesStaleInvoice(t *testing.T) {
	cases := []struct {
		name string
		inv  bitpay.Invoice
	}{
		{name: "expired", inv: bitpay.Invoice{Status: bitpay.StatusExpired, Price: 50.0, Currency: "USD"}},
		{name: "price changed", inv: bitpay.Invoice{Status: bitpay.StatusNew, Price: 49.0, Currency: "USD"}},
		{name: "currency changed", inv: bitpay.Invoice{Status: bitpay.StatusNew, Price: 50.0, Currency: "EUR"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, gw, _ := newTestService(testConfig())
			order := &models.Order{ID: 101, Total: 50.0, Status: models.OrderStatusPending}
			repo.orders[101] = order
			repo.invoices[101] = &models.InvoiceRecord{OrderID: 101, InvoiceID: "inv-2", TxnSpeed: "low"}
			stale := tc.inv
			stale.ID = "inv-2"
			gw.invoices["inv-2"] = &stale

			rec, inv, err := svc.EnsureInvoice(context.Background(), order)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gw.createCalls != 1 {
				t.Fatalf("stale invoice must be replaced, got %d creations", gw.createCalls)
			}
			if rec.InvoiceID == "inv-2" {
				t.Fatalf("record still references the stale invoice")
			}
			if inv.Price != 50.0 || inv.Currency != "USD" {
				t.Fatalf("replacement invoice priced wrong: %+v", inv)
			}

			// The old invoice must no longer resolve to the order.
			if _, err := repo.FindInvoiceByInvoiceID("inv-2"); !isNotFound(err) {
				t.Fatalf("stale record still resolvable: %v", err)
			}
		})
	}
}

func TestEnsureInvoice_FetchFailureReissues(t *testing.T) {
	svc, repo, gw, _ := newTestService(testConfig())
	order := &models.Order{ID: 102, Total: 12.5, Status: models.OrderStatusPending}
	repo.orders[102] = order
	repo.invoices[102] = &models.InvoiceRecord{OrderID: 102, InvoiceID: "inv-gone", TxnSpeed: "low"}
	gw.getErr = errors.New("gateway timeout")

	rec, _, err := svc.EnsureInvoice(context.Background(), order)
	if err != nil {
		t.Fatalf("fetch failure must fail open, got %v", err)
	}
	if gw.createCalls != 1 {
		t.Fatalf("expected re-issue after fetch failure, got %d creations", gw.createCalls)
	}
	if rec.InvoiceID == "inv-gone" {
		t.Fatalf("record still references the unreachable invoice")
	}
}

func TestEnsureInvoice_CreationFailureSurfaces(t *testing.T) {
	svc, repo, gw, _ := newTestService(testConfig())
	order := &models.Order{ID: 103, Total: 20.0, Status: models.OrderStatusPending}
	repo.orders[103] = order
	gw.createErr = errors.New("503 from gateway")

	_, _, err := svc.EnsureInvoice(context.Background(), order)
	if !errors.Is(err, ErrInvoiceCreate) {
		t.Fatalf("expected ErrInvoiceCreate, got %v", err)
	}
	if _, err := repo.FindInvoiceByOrder(103); !isNotFound(err) {
		t.Fatalf("no record may be left behind after a failed creation")
	}
}

func TestEnsureInvoice_RoundsTotalToCents(t *testing.T) {
	svc, repo, gw, _ := newTestService(testConfig())
	order := &models.Order{ID: 104, Total: 19.999, Status: models.OrderStatusPending}
	repo.orders[104] = order

	_, _, err := svc.EnsureInvoice(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gw.created[0].Price; got != 20.0 {
		t.Fatalf("expected price rounded to 20.00, got %v", got)
	}
}

func TestEnsureInvoice_SendsConfiguredAttributes(t *testing.T) {
	cfg := testConfig()
	cfg.NotifyEmailActive = true
	cfg.NotifyEmail = "sales@example.com"
	cfg.Physical = true
	cfg.TxnSpeed = "medium"
	svc, repo, gw, _ := newTestService(cfg)
	order := &models.Order{ID: 105, Total: 5.0, Status: models.OrderStatusPending}
	repo.orders[105] = order

	rec, _, err := svc.EnsureInvoice(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := gw.created[0]
	if in.NotificationEmail != "sales@example.com" || !in.Physical || in.TransactionSpeed != "medium" {
		t.Fatalf("creation request missing configured attributes: %+v", in)
	}
	if in.NotificationURL != "https://store.example/bitpay/notifications" {
		t.Fatalf("unexpected notification URL %q", in.NotificationURL)
	}
	if rec.NotifyEmail != "sales@example.com" || !rec.Physical || rec.TxnSpeed != "medium" {
		t.Fatalf("record missing configured attributes: %+v", rec)
	}
}
