package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const smsapiBaseURL = "https://api.smsapi.pl"

// SMSAPISender sends SMS through the SMSAPI sms.do endpoint.
type SMSAPISender struct {
	cfg    SMSAPISettings
	client *http.Client
}

// NewSMSAPISender returns a sender for cfg.
func NewSMSAPISender(cfg SMSAPISettings, timeout time.Duration) *SMSAPISender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = smsapiBaseURL
	}
	return &SMSAPISender{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// SendSMS implements SMSSender. SMSAPI reports some failures with HTTP 200
// and an error object, so the body is always inspected.
func (s *SMSAPISender) SendSMS(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("to", to)
	form.Set("message", body)
	form.Set("format", "json")
	if s.cfg.From != "" {
		form.Set("from", s.cfg.From)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.cfg.BaseURL, "/")+"/sms.do", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("smsapi: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Count   int    `json:"count"`
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&result); err != nil {
		return fmt.Errorf("smsapi: status %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || result.Error != 0 {
		return fmt.Errorf("smsapi: status %d: error %d: %s", resp.StatusCode, result.Error, result.Message)
	}
	if result.Count < 1 {
		return fmt.Errorf("smsapi: no message accepted")
	}
	return nil
}
