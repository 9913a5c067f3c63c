package ledgerctl

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

func newGenerateCommand(sess *session) *cobra.Command {
	var (
		classes []string
		amount  string
		dueDate string
		month   string
		remarks string
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Generate fee challans for every active student of the given classes",
		Example: `  ledgerctl generate --school school-1 --classes c-7,c-8 --amount 3000 --due-date 2026-03-10 --month "March 2026"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := sess.caller()
			if err != nil {
				return err
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			due, err := time.Parse("2006-01-02", dueDate)
			if err != nil {
				return fmt.Errorf("invalid --due-date, use YYYY-MM-DD: %w", err)
			}

			backend, err := sess.backend(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer backend.Close()

			report, err := backend.Generation.GenerateChallans(cmd.Context(), caller, classes, ledger.ChallanTemplate{
				Amount:  value,
				DueDate: &due,
				Month:   month,
				Remarks: remarks,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, class := range report.Classes {
				if class.Err != nil {
					fmt.Fprintf(out, "%-12s failed: %s\n", class.ClassID, class.Error)
					continue
				}
				fmt.Fprintf(out, "%-12s created %d, skipped %d\n", class.ClassID, class.Created, class.Skipped)
			}
			fmt.Fprintln(out, report.Message())
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d classes failed", report.Failed, len(report.Classes))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&classes, "classes", nil, "class ids (comma separated)")
	cmd.Flags().StringVar(&amount, "amount", "", "fee amount per student")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&month, "month", "", "month label, e.g. \"March 2026\"")
	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks copied to every challan")
	_ = cmd.MarkFlagRequired("classes")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("due-date")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
