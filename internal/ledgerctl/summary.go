package ledgerctl

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

func newSummaryCommand(sess *session) *cobra.Command {
	var filters filterFlags
	var monthly bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print collection totals for a school",
		Example: `  ledgerctl summary --school school-1 --kind fee --month 03-2026
  ledgerctl summary --school school-1 --kind salary --monthly --as-of 2026-04-01`,
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

			backend, err := sess.backend(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer backend.Close()

			if monthly {
				report, err := backend.Reports.MonthlySummary(cmd.Context(), caller, kind, filter)
				if err != nil {
					return err
				}
				return printMonthly(cmd.OutOrStdout(), report)
			}

			summary, err := backend.Reports.Summary(cmd.Context(), caller, kind, filter)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	filters.register(cmd)
	cmd.Flags().BoolVar(&monthly, "monthly", false, "one summary per month bucket")
	return cmd
}

func printSummary(w io.Writer, s ledger.Summary) error {
	_, err := fmt.Fprintf(w,
		"entries:    %d (paid %d, unpaid %d, overdue %d, pending %d)\n"+
			"total:      Rs. %s\n"+
			"collected:  Rs. %s\n"+
			"receivable: Rs. %s\n"+
			"rate:       %s%%\n",
		s.TotalCount, s.PaidCount, s.UnpaidCount, s.OverdueCount, s.PendingCount,
		s.TotalAmount.StringFixed(2), s.PaidAmount.StringFixed(2), s.UnpaidAmount.StringFixed(2),
		s.CollectionRate.StringFixed(1),
	)
	if err == nil && s.Unresolved > 0 {
		_, err = fmt.Fprintf(w, "unresolved: %d entries without a month\n", s.Unresolved)
	}
	return err
}

type monthlyLine struct {
	Month          string `json:"month"`
	TotalCount     int    `json:"total_count"`
	PaidCount      int    `json:"paid_count"`
	OverdueCount   int    `json:"overdue_count"`
	TotalAmount    string `json:"total_amount"`
	PaidAmount     string `json:"paid_amount"`
	CollectionRate string `json:"collection_rate"`
}

// printMonthly writes one JSON document per month, which pipes well into jq.
func printMonthly(w io.Writer, r ledger.MonthlyReport) error {
	enc := json.NewEncoder(w)
	for _, m := range r.Months {
		line := monthlyLine{
			Month:          m.Month.String(),
			TotalCount:     m.TotalCount,
			PaidCount:      m.PaidCount,
			OverdueCount:   m.OverdueCount,
			TotalAmount:    m.TotalAmount.StringFixed(2),
			PaidAmount:     m.PaidAmount.StringFixed(2),
			CollectionRate: m.CollectionRate.StringFixed(1),
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
