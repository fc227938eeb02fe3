package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioMessages is the subset of the Twilio REST client used here.
type twilioMessages interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio Messages resource.
type TwilioSender struct {
	from    string
	timeout time.Duration
	client  twilioMessages
}

// NewTwilioSender returns a sender for cfg.
func NewTwilioSender(cfg TwilioSettings, timeout time.Duration) *TwilioSender {
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	rc.SetTimeout(timeout)
	if cfg.Region != "" {
		rc.SetRegion(cfg.Region)
	}
	if cfg.Edge != "" {
		rc.SetEdge(cfg.Edge)
	}
	return &TwilioSender{from: cfg.From, timeout: timeout, client: rc.Api}
}

// SendSMS implements SMSSender.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	_, err := withContext(ctx, s.timeout, func() (*twilioapi.ApiV2010Message, error) {
		return s.client.CreateMessage(params)
	})
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	return nil
}
