// Package mercadopago is a small REST client for the Mercado Pago checkout
// preference and payment endpoints.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://api.mercadopago.com"
	Currency        = "MXN"
	StatusApproved  = "approved"
	OriginApp       = "app"
	ProductTitleFmt = "Vita365 %s %s"
)

type Config struct {
	AccessToken     string
	BaseURL         string
	NotificationURL string
	// ReturnURLWeb and ReturnURLApp receive the buyer after checkout; the app
	// URL is a deep link used when the checkout started inside the mobile app.
	ReturnURLWeb string
	ReturnURLApp string
	Timeout      time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// APIError is a non-2xx answer from Mercado Pago.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status %d: %s", e.Status, e.Body)
}

type PreferenceRequest struct {
	UserID    string
	Plan      string
	Frequency string
	Amount    float64
	// Origin is "app" for in-app checkouts; anything else returns to the web.
	Origin string
}

type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type item struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceBody struct {
	Items             []item            `json:"items"`
	BackURLs          map[string]string `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	ExternalReference string            `json:"external_reference"`
}

func (c *Client) backURLs(origin string) map[string]string {
	base := c.cfg.ReturnURLWeb
	if origin == OriginApp && c.cfg.ReturnURLApp != "" {
		base = c.cfg.ReturnURLApp
	}
	if base == "" {
		return nil
	}
	out := make(map[string]string, 3)
	for _, status := range []string{"success", "failure", "pending"} {
		out[status] = base + "?from=mp&status=" + status
	}
	return out
}

// CreatePreference opens a checkout for one plan period. The user id travels
// as external_reference so the webhook can attribute the payment.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	if req.UserID == "" {
		return Preference{}, fmt.Errorf("mercadopago: user id required")
	}
	if req.Amount <= 0 {
		return Preference{}, fmt.Errorf("mercadopago: amount must be positive")
	}
	body := preferenceBody{
		Items: []item{{
			Title:      fmt.Sprintf(ProductTitleFmt, req.Plan, req.Frequency),
			Quantity:   1,
			UnitPrice:  req.Amount,
			CurrencyID: Currency,
		}},
		BackURLs:          c.backURLs(req.Origin),
		NotificationURL:   c.cfg.NotificationURL,
		ExternalReference: req.UserID,
	}
	if body.BackURLs != nil {
		body.AutoReturn = StatusApproved
	}
	var out Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, &out); err != nil {
		return Preference{}, err
	}
	if out.ID == "" {
		return Preference{}, fmt.Errorf("mercadopago: preference without id")
	}
	return out, nil
}

type Payment struct {
	ID                int64      `json:"id"`
	Status            string     `json:"status"`
	ExternalReference string     `json:"external_reference"`
	TransactionAmount float64    `json:"transaction_amount"`
	DateApproved      *time.Time `json:"date_approved"`
}

func (p Payment) Approved() bool { return p.Status == StatusApproved }

func (c *Client) GetPayment(ctx context.Context, id string) (Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Payment{}, fmt.Errorf("mercadopago: payment id required")
	}
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return Payment{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("mercadopago: marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mercadopago: decode response: %w", err)
	}
	return nil
}
