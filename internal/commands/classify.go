package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/ingest"
	"github.com/quarterly-dev/quarterly/internal/logger"
)

func classifyCmd() *cobra.Command {
	var (
		file         string
		businessType string
		asJSON       bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify every transaction in a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New()
			records, err := ingest.ReadFile(file)
			if err != nil {
				return err
			}

			svc := newService(dryRun, log)

			progress := func(completed, total int, pct float64) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\rclassifying %d/%d (%.0f%%)", completed, total, pct)
			}
			result, err := svc.ClassifyBatch(cmd.Context(), records, category.BusinessType(businessType), progress)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			for _, r := range result.Results {
				disposition := string(r.Category)
				switch {
				case r.IsPersonal:
					disposition = "personal"
				case r.NeedsReview:
					disposition = "manual review"
				case r.NotProcessed:
					disposition = "not processed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-40.40s  %10s  %s\n",
					r.Index, r.Row.Description, r.Row.Amount.StringFixed(2), disposition)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-40.40s  ERROR %s\n", e.Index, e.Description, e.Code)
			}
			c := result.Counts
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d classified, %d personal, %d manual review, %d errors\n",
				c.Successful, c.Personal, c.ManualReview, c.Errors)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "spreadsheet to classify (.xlsx or .csv)")
	cmd.Flags().StringVarP(&businessType, "business-type", "b", string(category.SelfEmployment), "business type (self-employment or uk-property)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use the offline rule-only classifier, no API calls")
	cmd.MarkFlagRequired("file")
	return cmd
}
