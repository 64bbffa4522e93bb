// mirrorctl inspects and maintains a local invoice mirror file. It is the
// offline companion to the API server: exported invoices land in the mirror,
// and this tool lists, repairs and prunes them without a running server.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"invoicegarden-backend/mirror"
	"invoicegarden-backend/models"
	"invoicegarden-backend/utils"
)

var mirrorPath string

var rootCmd = &cobra.Command{
	Use:   "mirrorctl",
	Short: "Inspect and maintain a local invoice mirror",
	Long: `mirrorctl operates on the goleveldb invoice mirror used for offline
access. Records written under the legacy key prefix are migrated to the
current prefix as they are touched.`,
	SilenceUsage: true,
}

func openMirror() (*mirror.Mirror, error) {
	return mirror.Open(mirrorPath, log.Logger)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored invoices, newest business date first",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()

		records, err := m.List()
		if err != nil {
			return err
		}
		for _, rec := range records {
			synced := " "
			if rec.CloudSynced {
				synced = "*"
			}
			fmt.Printf("%s %-24s %-16s %14s %s\n",
				synced, rec.Id, rec.Invoice.InvoiceNumber,
				utils.FormatAmount(rec.Invoice.Total, rec.Invoice.Currency), rec.Invoice.Date)
		}
		fmt.Printf("%d record(s), * = synced to cloud\n", len(records))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one mirrored invoice as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()

		rec, err := m.Get(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import an invoice document into the mirror",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var doc models.InvoiceDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("malformed invoice document: %w", err)
		}
		if err := models.ValidateInvoiceId(doc.Id); err != nil {
			return err
		}

		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Save(doc.Id, &doc, nil); err != nil {
			return err
		}
		fmt.Printf("imported %s\n", doc.Id)
		return nil
	},
}

var markSyncedCmd = &cobra.Command{
	Use:   "mark-synced <id> <cloud-id>",
	Short: "Flag a mirrored invoice as synced to the cloud store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()
		return m.UpdateSyncStatus(args[0], true, args[1])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove one invoice from the mirror",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Delete(args[0])
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every invoice from the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Clear()
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count mirrored invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMirror()
		if err != nil {
			return err
		}
		defer m.Close()

		n, err := m.Count()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVarP(&mirrorPath, "path", "p", "invoices.mirror", "mirror database path")
	rootCmd.AddCommand(listCmd, getCmd, importCmd, markSyncedCmd, deleteCmd, clearCmd, countCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
