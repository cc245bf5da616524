package mof

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/port"
)

// Response codes of the MOF e-invoice query API.
const (
	codeFound    = "200"
	codeNotFound = "919"
)

// Config holds the MOF platform connection parameters.
type Config struct {
	Endpoint   string
	AppID      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Client implements port.InvoiceVerifier against the Ministry of Finance
// e-invoice platform. Lookups are best-effort: anything short of a definitive
// answer maps to OutcomeUnavailable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new MOF verification client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type queryResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Verify queries the platform for an invoice. Transient failures are retried
// with a fixed backoff; a still-failing lookup returns OutcomeUnavailable.
func (c *Client) Verify(ctx context.Context, invoiceNumber string, invoiceDate time.Time, randomCode string) port.VerificationOutcome {
	form := url.Values{
		"version":      {"0.5"},
		"type":         {"Barcode"},
		"invNum":       {invoiceNumber},
		"invDate":      {rocDate(invoiceDate)},
		"randomNumber": {randomCode},
		"appID":        {c.cfg.AppID},
		"UUID":         {c.cfg.APIKey},
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.logger.Warn("Invoice verification aborted",
					zap.String("invoice_number", invoiceNumber),
					zap.Error(ctx.Err()))
				return port.OutcomeUnavailable
			case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
			}
		}

		outcome, err := c.query(ctx, form)
		if err == nil {
			return outcome
		}
		lastErr = err
	}

	c.logger.Warn("Invoice verification unavailable",
		zap.String("invoice_number", invoiceNumber),
		zap.Int("attempts", c.cfg.MaxRetries+1),
		zap.Error(lastErr))
	return port.OutcomeUnavailable
}

func (c *Client) query(ctx context.Context, form url.Values) (port.VerificationOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return port.OutcomeUnavailable, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return port.OutcomeUnavailable, fmt.Errorf("query MOF platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return port.OutcomeUnavailable, fmt.Errorf("MOF platform returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return port.OutcomeUnavailable, fmt.Errorf("read response: %w", err)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return port.OutcomeUnavailable, fmt.Errorf("decode response: %w", err)
	}

	switch qr.Code {
	case codeFound:
		return port.OutcomeVerified, nil
	case codeNotFound:
		return port.OutcomeNotFound, nil
	default:
		return port.OutcomeUnavailable, fmt.Errorf("MOF platform code %s: %s", qr.Code, qr.Msg)
	}
}

// rocDate renders a date in the platform's Republic-of-China calendar form,
// e.g. 2026-01-25 -> "115/01/25".
func rocDate(t time.Time) string {
	return fmt.Sprintf("%d/%02d/%02d", t.Year()-1911, int(t.Month()), t.Day())
}

// Verify interface compliance
var _ port.InvoiceVerifier = (*Client)(nil)
