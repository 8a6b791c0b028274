package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/jofotara-bridge/internal/store"
	"github.com/rezonia/jofotara-bridge/internal/transport"
	"github.com/rezonia/jofotara-bridge/internal/ubl"
)

var (
	buildOutput string
	buildID     string
	buildMinify bool
)

var buildCmd = &cobra.Command{
	Use:   "build [invoice.json]",
	Short: "Build the UBL 2.1 XML for an invoice without submitting it",
	Long: `Build converts an invoice JSON file into JoFotara-profile UBL 2.1 XML
and prints it, useful for inspecting the document before submission.

Examples:
  jofotara-bridge build invoice.json
  jofotara-bridge build invoices.json --id SINV-0001 -o sinv-0001.xml
  jofotara-bridge build invoice.json --minify`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output file (default: stdout)")
	buildCmd.Flags().StringVar(&buildID, "id", "", "Invoice ID to build (default: the only invoice in the file)")
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false, "Emit the wire form instead of indented XML")
}

func runBuild(cmd *cobra.Command, args []string) error {
	st, err := store.LoadFile(args[0])
	if err != nil {
		return err
	}

	id, err := resolveInvoiceID(st, buildID)
	if err != nil {
		return err
	}

	inv, err := st.Invoice(cmd.Context(), id)
	if err != nil {
		return err
	}

	cfg := settings()
	in := ubl.Input{Invoice: inv, DefaultVATRate: cfg.FallbackVATRate()}
	if act, err := cfg.Activity(); err == nil {
		in.ActivityNumber = act
	}
	if inv.IsReturn && inv.ReturnAgainst != "" {
		if orig, err := st.Invoice(cmd.Context(), inv.ReturnAgainst); err == nil {
			in.Original = &ubl.OriginalInvoice{
				ID:         orig.ID,
				UUID:       orig.UUID,
				GrandTotal: orig.GrandTotal,
			}
		}
	}

	result, err := ubl.Build(in)
	if err != nil {
		return err
	}
	printVerbose("document UUID: %s\n", result.UUID)

	xml := result.XML
	if buildMinify {
		xml = transport.Minify(xml)
	}

	if buildOutput != "" {
		return os.WriteFile(buildOutput, []byte(xml), 0o644)
	}
	fmt.Println(xml)
	return nil
}

// resolveInvoiceID returns the requested ID, or the single invoice in the
// store when none was given.
func resolveInvoiceID(st *store.MemoryStore, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	ids := st.IDs()
	if len(ids) != 1 {
		return "", fmt.Errorf("file holds %d invoices, pick one with --id", len(ids))
	}
	return ids[0], nil
}
