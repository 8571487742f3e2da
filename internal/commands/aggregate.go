package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/ingest"
	"github.com/quarterly-dev/quarterly/internal/logger"
	"github.com/quarterly-dev/quarterly/internal/period"
)

func aggregateCmd() *cobra.Command {
	var (
		file         string
		businessType string
		targetPeriod string
		shape        string
		priorFile    string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Produce the quarterly category totals for a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New()
			records, err := ingest.ReadFile(file)
			if err != nil {
				return err
			}
			target, err := period.ParsePeriod(targetPeriod)
			if err != nil {
				return err
			}
			prior, err := loadPriorTotals(priorFile)
			if err != nil {
				return err
			}

			svc := newService(dryRun, log)

			report, err := svc.ResolveAndAggregate(cmd.Context(), records, target,
				category.BusinessType(businessType), shape, prior, nil)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n\n", report.BusinessType, report.Period, report.GeneratedAt.Format("2006-01-02"))

			codes := make([]string, 0, len(report.Totals))
			for c := range report.Totals {
				codes = append(codes, string(c))
			}
			sort.Strings(codes)
			for _, c := range codes {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-28s %12s\n", c, report.Totals[category.Code(c)].StringFixed(2))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  total income:    %12s\n", report.Summary.TotalIncome.StringFixed(2))
			fmt.Fprintf(cmd.OutOrStdout(), "  total expenses:  %12s\n", report.Summary.TotalExpenses.StringFixed(2))
			fmt.Fprintf(cmd.OutOrStdout(), "  net profit/loss: %12s\n", report.Summary.NetProfitLoss.StringFixed(2))

			c := report.Counts
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d classified, %d personal, %d manual review, %d errors\n",
				c.Successful, c.Personal, c.ManualReview, c.Errors)
			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "spreadsheet to aggregate (.xlsx or .csv)")
	cmd.Flags().StringVarP(&businessType, "business-type", "b", string(category.SelfEmployment), "business type (self-employment or uk-property)")
	cmd.Flags().StringVarP(&targetPeriod, "period", "p", "", "target period (Q1-Q4)")
	cmd.Flags().StringVar(&shape, "shape", "", "declared spreadsheet shape (direct, cumulative, multi-section)")
	cmd.Flags().StringVar(&priorFile, "prior", "", "JSON file of prior cumulative category totals")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use the offline rule-only classifier, no API calls")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("period")
	return cmd
}

// loadPriorTotals reads {"categoryCode": "123.45", ...} from a JSON file.
func loadPriorTotals(path string) (category.Totals, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prior totals: %w", err)
	}
	totals := make(category.Totals, len(raw))
	for code, amount := range raw {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid prior total for %s: %q", code, amount)
		}
		totals[category.Code(code)] = d
	}
	return totals, nil
}
