// Package config holds the JoFotara bridge settings. Settings are a plain
// value object resolved once per operation and passed explicitly to the
// components that need them.
package config

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/jofotara-bridge/internal/model"
)

const (
	// DefaultBaseURL is the government submission host.
	DefaultBaseURL = "https://backend.jofotara.gov.jo"
	// DefaultSubmitPath is the invoice submission endpoint.
	DefaultSubmitPath = "/core/invoices/"
	// DefaultTimeout bounds the synchronous submission call.
	DefaultTimeout = 30 * time.Second
)

// DefaultVATRate is Jordan's standard VAT rate, used when neither the item
// nor the document carries one.
var DefaultVATRate = decimal.RequireFromString("16.0")

var nonDigits = regexp.MustCompile(`\D`)

// Settings configures the bridge for one operation.
type Settings struct {
	BaseURL    string
	SubmitPath string

	// Direct credentials. Take precedence over the device pair.
	ClientID  string
	SecretKey string

	// Device-identity fallback credentials.
	DeviceUser   string
	DeviceSecret string

	// ActivityNumber is the authority-assigned commercial activity id,
	// digits only, 1 to 15 characters after normalization.
	ActivityNumber string

	// DefaultVATRate overrides the standard fallback rate when non-zero.
	DefaultVATRate decimal.Decimal

	// SendOnSubmit enables automatic submission when the host finalizes
	// an invoice.
	SendOnSubmit bool

	Timeout time.Duration
}

// Credentials is the resolved Client-Id / Secret-Key pair.
type Credentials struct {
	ClientID  string
	SecretKey string
}

// ResolveCredentials picks direct credentials first and falls back to the
// device pair. Missing credentials are a fatal configuration error.
func (s Settings) ResolveCredentials() (Credentials, error) {
	id := strings.TrimSpace(s.ClientID)
	secret := strings.TrimSpace(s.SecretKey)

	if id == "" {
		id = strings.TrimSpace(s.DeviceUser)
	}
	if secret == "" {
		secret = strings.TrimSpace(s.DeviceSecret)
	}

	if id == "" || secret == "" {
		return Credentials{}, model.NewConfigError("credentials",
			"provide Client ID/Secret Key or Device User/Device Secret")
	}
	return Credentials{ClientID: id, SecretKey: secret}, nil
}

// Activity normalizes the activity number to digits and validates its
// length (1 to 15).
func (s Settings) Activity() (string, error) {
	activity := nonDigits.ReplaceAllString(strings.TrimSpace(s.ActivityNumber), "")
	if len(activity) < 1 || len(activity) > 15 {
		return "", model.NewConfigError("activity_number",
			"required, digits only, 1 to 15 digits")
	}
	return activity, nil
}

// SubmitURL joins the base host and submission path.
func (s Settings) SubmitURL() string {
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	path := strings.TrimSpace(s.SubmitPath)
	if path == "" {
		path = DefaultSubmitPath
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// FallbackVATRate returns the configured default rate, or Jordan's
// standard 16.0 when unset.
func (s Settings) FallbackVATRate() decimal.Decimal {
	if !s.DefaultVATRate.IsZero() {
		return s.DefaultVATRate
	}
	return DefaultVATRate
}

// RequestTimeout returns the configured timeout or the default.
func (s Settings) RequestTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}
