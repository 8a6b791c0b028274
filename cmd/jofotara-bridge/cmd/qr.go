package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/jofotara-bridge/internal/qr"
	"github.com/rezonia/jofotara-bridge/internal/reconcile"
	"github.com/rezonia/jofotara-bridge/internal/store"
)

var (
	qrID  string
	qrDir string
)

var qrCmd = &cobra.Command{
	Use:   "qr [invoice.json]",
	Short: "Render the QR image for a submitted invoice",
	Long: `QR renders the QR payload already stored on an invoice into a PNG
image, for records submitted before image rendering was available.

Examples:
  jofotara-bridge qr invoices.json --id SINV-0001 --out ./attachments`,
	Args: cobra.ExactArgs(1),
	RunE: runQR,
}

func init() {
	rootCmd.AddCommand(qrCmd)

	qrCmd.Flags().StringVar(&qrID, "id", "", "Invoice ID (default: the only invoice in the file)")
	qrCmd.Flags().StringVar(&qrDir, "out", ".", "Directory for the PNG attachment")
}

func runQR(cmd *cobra.Command, args []string) error {
	st, err := store.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(qrDir, 0o755); err != nil {
		return err
	}
	st.SetAttachmentDir(qrDir)

	id, err := resolveInvoiceID(st, qrID)
	if err != nil {
		return err
	}

	logger := newLogger()
	defer logger.Sync()

	reconciler := reconcile.NewReconciler(settings(), st, nil,
		reconcile.WithAttachmentStore(st),
		reconcile.WithQRFetcher(qr.NewFetcher(
			qr.WithLogger(logger),
			qr.WithLocalFallback(),
		)),
		reconcile.WithLogger(logger),
	)

	url, err := reconciler.AttachQRImage(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
