package ledgerctl

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/school-fee-ledger/internal/ledger_api/service"
)

func newExportCommand(sess *session) *cobra.Command {
	var filters filterFlags
	var ids []string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger entries as CSV",
		Long: `Export writes the filtered entries, or only the given ids, as CSV.
Without --output the file is named after the export, e.g. all_fees_03-2026.csv.
Use --output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := sess.caller()
			if err != nil {
				return err
			}
			kind, filter, err := filters.parse()
			if err != nil {
				return err
			}
			selected := make([]uuid.UUID, 0, len(ids))
			for _, raw := range ids {
				id, err := uuid.Parse(strings.TrimSpace(raw))
				if err != nil {
					return fmt.Errorf("invalid entry id %q: %w", raw, err)
				}
				selected = append(selected, id)
			}

			backend, err := sess.backend(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer backend.Close()

			export, err := backend.Reports.ExportCSV(cmd.Context(), caller, kind, service.ExportRequest{Filter: filter, IDs: selected})
			if err != nil {
				return err
			}

			if output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), export.Content)
				return err
			}
			path := output
			if path == "" {
				path = export.Filename
			}
			if err := os.WriteFile(path, []byte(export.Content), 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", export.Rows, path)
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "export only these entry ids (comma separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}
