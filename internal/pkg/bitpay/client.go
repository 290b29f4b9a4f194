package bitpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arttus/uc-bitpay/internal/pkg/env"
)

const defaultAPIBaseURL = "https://bitpay.com/api"

// ErrAuthentication marks verification or API failures caused by a bad or
// rotated API key, as opposed to malformed payloads or transport errors.
var ErrAuthentication = errors.New("bitpay: authentication failed")

// Client talks to the bitpay invoice API. API keys are passed per call so the
// caller can retry verification under a rotated key.
type Client struct {
	APIBaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("BITPAY_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateInvoiceRequest carries the order attributes sent on invoice creation.
type CreateInvoiceRequest struct {
	OrderID           uint
	Price             float64
	Currency          string
	Physical          bool
	TransactionSpeed  string
	FullNotifications bool
	NotificationEmail string
	NotificationURL   string
	RedirectURL       string
}

type wireInvoice struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	URL      string  `json:"url"`
}

func (w wireInvoice) toInvoice() *Invoice {
	return &Invoice{
		ID:       strings.TrimSpace(w.ID),
		Status:   ParseInvoiceStatus(w.Status),
		Price:    w.Price,
		Currency: strings.TrimSpace(w.Currency),
		URL:      strings.TrimSpace(w.URL),
	}
}

// CreateInvoice requests a new invoice for an order.
func (c *Client) CreateInvoice(ctx context.Context, apiKey string, in CreateInvoiceRequest) (*Invoice, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("bitpay api key is required")
	}

	body := map[string]interface{}{
		"price":             in.Price,
		"currency":          in.Currency,
		"physical":          in.Physical,
		"transactionSpeed":  in.TransactionSpeed,
		"fullNotifications": in.FullNotifications,
		"posData":           EncodePosData(in.OrderID, apiKey),
	}
	if in.NotificationEmail != "" {
		body["notificationEmail"] = in.NotificationEmail
	}
	if in.NotificationURL != "" {
		body["notificationURL"] = in.NotificationURL
	}
	if in.RedirectURL != "" {
		body["redirectURL"] = in.RedirectURL
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/invoice", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(apiKey, "")

	return c.doInvoiceRequest(req)
}

// GetInvoice fetches the current snapshot of an invoice.
func (c *Client) GetInvoice(ctx context.Context, invoiceID, apiKey string) (*Invoice, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return nil, errors.New("invoice id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/invoice/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(apiKey, "")

	return c.doInvoiceRequest(req)
}

func (c *Client) doInvoiceRequest(req *http.Request) (*Invoice, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status=%d", ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bitpay invoice request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var w wireInvoice
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, errors.New("bitpay invoice response missing id")
	}
	return w.toInvoice(), nil
}

type posData struct {
	OrderID uint   `json:"orderId"`
	Hash    string `json:"hash"`
}

// EncodePosData builds the posData blob attached to an invoice at creation.
// The embedded HMAC ties the order reference to the API key so notifications
// can be authenticated without a shared webhook secret.
func EncodePosData(orderID uint, apiKey string) string {
	b, _ := json.Marshal(posData{
		OrderID: orderID,
		Hash:    posDataHash(orderID, apiKey),
	})
	return string(b)
}

func posDataHash(orderID uint, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(strconv.FormatUint(uint64(orderID), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyNotification authenticates a raw notification payload against an API
// key and returns the parsed notification. A malformed payload yields a plain
// error; an HMAC mismatch yields ErrAuthentication.
func (c *Client) VerifyNotification(payload []byte, apiKey string) (*Notification, error) {
	var raw struct {
		ID      string  `json:"id"`
		Status  string  `json:"status"`
		Price   float64 `json:"price"`
		URL     string  `json:"url"`
		PosData string  `json:"posData"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed bitpay notification: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("bitpay notification missing invoice id")
	}

	var pd posData
	if err := json.Unmarshal([]byte(raw.PosData), &pd); err != nil {
		return nil, fmt.Errorf("malformed bitpay posData: %w", err)
	}

	expected, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(pd.Hash)))
	if err != nil {
		return nil, fmt.Errorf("malformed bitpay posData hash: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(strconv.FormatUint(uint64(pd.OrderID), 10)))
	if !hmac.Equal(mac.Sum(nil), expected) {
		return nil, ErrAuthentication
	}

	return &Notification{
		InvoiceID: strings.TrimSpace(raw.ID),
		Status:    ParseInvoiceStatus(raw.Status),
		RawStatus: strings.TrimSpace(raw.Status),
		Price:     raw.Price,
		URL:       strings.TrimSpace(raw.URL),
		OrderID:   pd.OrderID,
	}, nil
}
