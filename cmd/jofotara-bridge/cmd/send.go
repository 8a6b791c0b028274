package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/jofotara-bridge/internal/qr"
	"github.com/rezonia/jofotara-bridge/internal/reconcile"
	"github.com/rezonia/jofotara-bridge/internal/store"
	"github.com/rezonia/jofotara-bridge/internal/transport"
)

var (
	sendID        string
	sendTimeout   time.Duration
	sendAttachDir string
	sendRenderQR  bool
)

var sendCmd = &cobra.Command{
	Use:   "send [invoice.json]",
	Short: "Submit an invoice to JoFotara",
	Long: `Send builds the UBL XML for an invoice, submits it to the JoFotara API
and prints the reconciled result. The invoice file is updated in place
with the returned UUID, QR payload and status.

Examples:
  jofotara-bridge send invoice.json --client-id <id> --secret-key <key>
  jofotara-bridge send invoices.json --id SINV-0001 --activity 123456789
  jofotara-bridge send invoice.json --attachments ./out --render-qr`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendID, "id", "", "Invoice ID to send (default: the only invoice in the file)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "Submission timeout")
	sendCmd.Flags().StringVar(&sendAttachDir, "attachments", "", "Directory for XML and QR attachments")
	sendCmd.Flags().BoolVar(&sendRenderQR, "render-qr", false, "Render the returned QR payload to a PNG attachment")
}

func runSend(cmd *cobra.Command, args []string) error {
	st, err := store.LoadFile(args[0])
	if err != nil {
		return err
	}
	if sendAttachDir != "" {
		if err := os.MkdirAll(sendAttachDir, 0o755); err != nil {
			return err
		}
		st.SetAttachmentDir(sendAttachDir)
	}

	id, err := resolveInvoiceID(st, sendID)
	if err != nil {
		return err
	}

	cfg := settings()
	logger := newLogger()
	defer logger.Sync()

	client := transport.NewClient(cfg,
		transport.WithLogger(logger),
		transport.WithAuditSink(st),
		transport.WithTimeout(sendTimeout),
	)

	opts := []reconcile.Option{
		reconcile.WithAttachmentStore(st),
		reconcile.WithLogger(logger),
	}
	if sendRenderQR {
		opts = append(opts, reconcile.WithQRFetcher(qr.NewFetcher(
			qr.WithLogger(logger),
			qr.WithLocalFallback(),
		)))
	}
	reconciler := reconcile.NewReconciler(cfg, st, client, opts...)

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	resp, err := reconciler.Send(ctx, id)
	if resp != nil {
		body, _ := json.MarshalIndent(resp.Fields, "", "  ")
		fmt.Println(string(body))
	}
	if err != nil {
		return err
	}

	inv, err := st.Invoice(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("invoice %s: %s", inv.ID, inv.Status)
	if inv.UUID != "" {
		fmt.Printf(" uuid=%s", inv.UUID)
	}
	fmt.Println()
	return nil
}
