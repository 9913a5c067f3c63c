package ledgerctl

import (
	"github.com/spf13/cobra"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

type filterFlags struct {
	kind   string
	month  string
	status string
	search string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "fee", "ledger kind: fee or salary")
	cmd.Flags().StringVar(&f.month, "month", "", "month bucket, e.g. 03-2026 or \"March 2026\"")
	cmd.Flags().StringVar(&f.status, "status", "", "resolved status: Paid, Unpaid, Overdue or Pending")
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive match on name or roll number")
}

func (f *filterFlags) parse() (ledger.Kind, ledger.Filter, error) {
	kind, err := ledger.ParseKind(f.kind)
	if err != nil {
		return "", ledger.Filter{}, err
	}
	filter := ledger.Filter{Search: f.search}
	if f.month != "" {
		key, err := ledger.ParseMonthKey(f.month)
		if err != nil {
			return "", ledger.Filter{}, err
		}
		filter.Month = &key
	}
	if f.status != "" {
		status, err := ledger.ParseResolvedStatus(f.status)
		if err != nil {
			return "", ledger.Filter{}, err
		}
		filter.Status = &status
	}
	return kind, filter, nil
}
