package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/jofotara-bridge/internal/config"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	baseURL      string
	clientID     string
	secretKey    string
	deviceUser   string
	deviceSecret string
	activity     string
	vatRate      string
)

var rootCmd = &cobra.Command{
	Use:   "jofotara-bridge",
	Short: "Submit invoices to JoFotara, Jordan's national e-invoicing platform",
	Long: `JoFotara Bridge converts commercial invoices into UBL 2.1 XML and
submits them to the JoFotara tax authority API, writing the returned
invoice UUID and QR payload back onto the invoice record.

Examples:
  # Build the UBL XML for an invoice without sending it
  jofotara-bridge build invoice.json

  # Submit an invoice
  jofotara-bridge send invoice.json --client-id <id> --secret-key <key>

  # Render the QR image for an already-submitted invoice
  jofotara-bridge qr invoices.json --id SINV-0001

  # Run the HTTP API
  jofotara-bridge serve --invoices invoices.json`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "JoFotara API base URL (env: JOFOTARA_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Client ID credential (env: JOFOTARA_CLIENT_ID)")
	rootCmd.PersistentFlags().StringVar(&secretKey, "secret-key", "", "Secret key credential (env: JOFOTARA_SECRET_KEY)")
	rootCmd.PersistentFlags().StringVar(&deviceUser, "device-user", "", "Device user fallback credential (env: JOFOTARA_DEVICE_USER)")
	rootCmd.PersistentFlags().StringVar(&deviceSecret, "device-secret", "", "Device secret fallback credential (env: JOFOTARA_DEVICE_SECRET)")
	rootCmd.PersistentFlags().StringVar(&activity, "activity", "", "Commercial activity number (env: JOFOTARA_ACTIVITY)")
	rootCmd.PersistentFlags().StringVar(&vatRate, "vat-rate", "", "Fallback VAT percentage (env: JOFOTARA_VAT_RATE)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// Local .env files are a convenience for development setups.
	_ = godotenv.Load()

	if baseURL == "" {
		baseURL = os.Getenv("JOFOTARA_BASE_URL")
	}
	if clientID == "" {
		clientID = os.Getenv("JOFOTARA_CLIENT_ID")
	}
	if secretKey == "" {
		secretKey = os.Getenv("JOFOTARA_SECRET_KEY")
	}
	if deviceUser == "" {
		deviceUser = os.Getenv("JOFOTARA_DEVICE_USER")
	}
	if deviceSecret == "" {
		deviceSecret = os.Getenv("JOFOTARA_DEVICE_SECRET")
	}
	if activity == "" {
		activity = os.Getenv("JOFOTARA_ACTIVITY")
	}
	if vatRate == "" {
		vatRate = os.Getenv("JOFOTARA_VAT_RATE")
	}
}

// settings assembles the bridge configuration from flags and environment.
func settings() config.Settings {
	s := config.Settings{
		BaseURL:        baseURL,
		ClientID:       clientID,
		SecretKey:      secretKey,
		DeviceUser:     deviceUser,
		DeviceSecret:   deviceSecret,
		ActivityNumber: activity,
	}
	if vatRate != "" {
		if rate, err := decimal.NewFromString(vatRate); err == nil {
			s.DefaultVATRate = rate
		} else {
			printVerbose("ignoring invalid --vat-rate %q\n", vatRate)
		}
	}
	return s
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func newLogger() *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}
