package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/jofotara-bridge/internal/server"
	"github.com/rezonia/jofotara-bridge/internal/store"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	invoicesFile string
	attachDir    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server fronting the bridge.

The API provides endpoints for:
  - GET  /api/v1/invoices/:id      - Fetch an invoice with its status
  - POST /api/v1/invoices/:id/send - Build, submit and reconcile
  - POST /api/v1/invoices/:id/qr   - Render the QR image
  - POST /api/v1/retry             - Re-send invoices not yet submitted
  - GET  /health                   - Health check

Examples:
  # Serve invoices from a JSON file
  jofotara-bridge serve --invoices invoices.json

  # Custom port with attachments on disk
  jofotara-bridge serve --invoices invoices.json --address :8080 --attachments ./out`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 2*time.Minute, "HTTP write timeout")
	serveCmd.Flags().StringVar(&invoicesFile, "invoices", "", "Invoice JSON file to serve")
	serveCmd.Flags().StringVar(&attachDir, "attachments", "", "Directory for XML and QR attachments")
}

func runServe(cmd *cobra.Command, args []string) error {
	st := store.NewMemoryStore()
	if invoicesFile != "" {
		loaded, err := store.LoadFile(invoicesFile)
		if err != nil {
			return err
		}
		st = loaded
	}
	if attachDir != "" {
		if err := os.MkdirAll(attachDir, 0o755); err != nil {
			return err
		}
		st.SetAttachmentDir(attachDir)
	}

	config := &server.Config{
		Address:      serverAddr,
		Settings:     settings(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}

	srv := server.NewServer(config, st)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	return srv.Run()
}
