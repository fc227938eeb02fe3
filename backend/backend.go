package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goMFA/internal/codes"
	"github.com/MrEthical07/goMFA/method"
)

// Handler references accepted in configuration.
const (
	HandlerEmail  = "email"
	HandlerTwilio = "sms_twilio"
	HandlerSMSAPI = "sms_api"
	HandlerSNS    = "sms_aws"
	HandlerApp    = "app"
	HandlerYubi   = "yubi"
)

// Scheme selects the code scheme of a method.
type Scheme = codes.Scheme

const (
	SchemeTOTP = codes.SchemeTOTP
	SchemeHOTP = codes.SchemeHOTP
)

var (
	ErrUnknownMethod          = errors.New("mfa method is not configured")
	ErrHandlerMissing         = errors.New("mfa method handler is missing")
	ErrMissingSourceAttribute = errors.New("user record has no value for the method source attribute")
	ErrCodeUnsupported        = errors.New("mfa method does not generate codes")
)

// User is the part of the user record handlers read.
type User struct {
	ID          string
	Username    string
	Email       string
	PhoneNumber string
	// Attributes holds any further fields, keyed by flattened path
	// ("profile.phone").
	Attributes map[string]string
}

// SourceFunc resolves a delivery destination from a user record. An empty
// result means the user has no destination for the method.
type SourceFunc func(User) string

// AttributeSource returns the accessor for a configured attribute path.
// "email", "phone_number" and "username" map to the typed fields; any other
// path is looked up in Attributes.
func AttributeSource(path string) SourceFunc {
	switch path {
	case "email":
		return func(u User) string { return u.Email }
	case "phone_number":
		return func(u User) string { return u.PhoneNumber }
	case "username":
		return func(u User) string { return u.Username }
	default:
		return func(u User) string { return u.Attributes[path] }
	}
}

// Target is what a handler acts on: the user and the method record as read
// at the start of the request.
type Target struct {
	User   User
	Method *method.Method
}

// Outcome is the uniform result of Dispatch.
type Outcome struct {
	Success bool
	Details string
}

// Handler is the capability set of one method type.
type Handler interface {
	// Dispatch sends a code or returns a provisioning payload.
	Dispatch(ctx context.Context, t Target) (Outcome, error)
	// CreateCode returns the current code, advancing the counter for
	// counter-based schemes.
	CreateCode(ctx context.Context, t Target) (string, error)
	// ConfirmActivation returns the secret to store on activation, or "" to
	// keep the current one. It is called only after
	// ValidateConfirmationCode accepted code.
	ConfirmActivation(ctx context.Context, t Target, code string) string
	ValidateCode(ctx context.Context, t Target, code string) bool
	ValidateConfirmationCode(ctx context.Context, t Target, code string) bool
}

// CounterStore persists counter state for counter-based schemes.
// *method.Registry satisfies it.
type CounterStore interface {
	AdvanceCounter(ctx context.Context, userID, name string) (*method.Method, error)
	ConsumeCounterCode(ctx context.Context, userID, name string, counter uint64) (bool, error)
}

// Settings is the configuration block of one method.
type Settings struct {
	VerboseName string
	Handler     string

	Scheme         Scheme
	ValidityPeriod time.Duration
	Interval       time.Duration

	// Source resolves the destination. When nil, SourceAttribute is turned
	// into an accessor with AttributeSource.
	Source          SourceFunc
	SourceAttribute string

	// Timeout bounds each provider call.
	Timeout time.Duration

	Email  EmailSettings
	Twilio TwilioSettings
	SMSAPI SMSAPISettings
	SNS    SNSSettings
	Yubico YubicoSettings
}

// EmailSettings configures the email handler.
type EmailSettings struct {
	Subject      string
	BodyTemplate string
	SMTP         SMTPSettings
}

// SMTPSettings configures SMTPMailer.
type SMTPSettings struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// TwilioSettings configures TwilioSender.
type TwilioSettings struct {
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	From       string `toml:"from"`
	// Region and Edge select a Twilio processing region and edge location.
	Region string `toml:"region"`
	Edge   string `toml:"edge"`
}

// SMSAPISettings configures SMSAPISender.
type SMSAPISettings struct {
	AccessToken string `toml:"access_token"`
	From        string `toml:"from"`
	BaseURL     string `toml:"base_url"`
}

// SNSSettings configures SNSSender. Empty credentials fall back to the
// default AWS credential chain.
type SNSSettings struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Endpoint        string `toml:"endpoint"`
}

// YubicoSettings configures YubiCloudVerifier.
type YubicoSettings struct {
	ClientID  string `toml:"client_id"`
	SecretKey string `toml:"secret_key"` // base64, as issued by Yubico
	APIURL    string `toml:"api_url"`
}

func (s Settings) source() SourceFunc {
	if s.Source != nil {
		return s.Source
	}
	if s.SourceAttribute != "" {
		return AttributeSource(s.SourceAttribute)
	}
	return nil
}

func destination(src SourceFunc, t Target) (string, error) {
	if src == nil {
		return "", fmt.Errorf("%w: method %q has no source", ErrMissingSourceAttribute, t.Method.Name)
	}
	to := src(t.User)
	if to == "" {
		return "", fmt.Errorf("%w: method %q", ErrMissingSourceAttribute, t.Method.Name)
	}
	return to, nil
}
