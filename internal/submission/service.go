// Package submission exposes the caller-facing pipeline entry points: batch
// classification and period-aware aggregation for one uploaded spreadsheet.
package submission

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quarterly-dev/quarterly/internal/aggregate"
	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/period"
)

// Service wires the pipeline components together. Each submission gets its
// own pipeline instance, so cache and rate-limiter state never leaks between
// concurrent or repeated runs.
type Service struct {
	classifier classify.Classifier
	analyzer   period.StructureAnalyzer
	cfg        classify.Config
	agg        *aggregate.Aggregator
	log        zerolog.Logger
}

// NewService creates a submission service. analyzer may be nil; strategy
// resolution then degrades to direct for undeclared later periods.
func NewService(classifier classify.Classifier, analyzer period.StructureAnalyzer, cfg classify.Config, log zerolog.Logger) *Service {
	return &Service{
		classifier: classifier,
		analyzer:   analyzer,
		cfg:        cfg,
		agg:        aggregate.NewAggregator(log),
		log:        log,
	}
}

// ClassifyBatch runs every record through the classification pipeline and
// returns the ordered results with per-row errors accumulated, never
// aborting the batch. When no row at all could be classified, the result is
// still returned alongside a NoClassifiableTransactions error.
func (s *Service) ClassifyBatch(ctx context.Context, records []map[string]string, bt category.BusinessType, progress classify.ProgressFunc) (*classify.BatchResult, error) {
	pipeline := classify.NewPipeline(s.classifier, s.cfg, s.log)
	result, err := pipeline.ClassifyRecords(ctx, records, bt, progress)
	if err != nil {
		return nil, err
	}
	if err := terminalCheck(len(records), result); err != nil {
		return result, err
	}
	return result, nil
}

// ResolveAndAggregate resolves the spreadsheet's shape for the target period,
// classifies the relevant rows, and aggregates them into the quarterly
// report. Strategy and section validation failures surface before any
// classification work begins.
func (s *Service) ResolveAndAggregate(ctx context.Context, records []map[string]string, target period.Period, bt category.BusinessType, declaredShape string, prior category.Totals, progress classify.ProgressFunc) (*aggregate.Report, error) {
	schema, err := category.SchemaFor(bt)
	if err != nil {
		return nil, err
	}

	resolver := period.NewResolver(s.analyzer, s.log)
	strategy, err := resolver.Resolve(ctx, records, target, declaredShape, prior)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Stringer("period", target).
		Stringer("shape", strategy.Shape).
		Bool("degraded", strategy.Degraded).
		Msg("resolved submission strategy")

	var warnings []string
	if strategy.Degraded {
		warnings = append(warnings, "spreadsheet shape assumed direct: structural analysis was unavailable")
	}

	rows := records
	if strategy.Shape == period.ShapeMultiSection {
		section, layout, err := period.ExtractSection(records, target)
		if err != nil {
			return nil, err
		}
		if layout == period.LayoutSummaryBox {
			// Box values are pre-aggregated per official code; no per-row
			// classification is needed.
			totals, unmapped := period.BoxTotals(section, schema)
			for _, desc := range unmapped {
				s.log.Warn().Str("row", desc).Msg("summary box row has no mapped category")
				warnings = append(warnings, "unmapped summary box row: "+desc)
			}
			report := s.agg.BuildReport(totals, schema, aggregate.Exclusions{}, classify.Counts{}, target)
			report.Warnings = warnings
			return report, nil
		}
		rows = section
	}

	pipeline := classify.NewPipeline(s.classifier, s.cfg, s.log)
	result, err := pipeline.ClassifyRecords(ctx, rows, bt, progress)
	if err != nil {
		return nil, err
	}
	if err := terminalCheck(len(rows), result); err != nil {
		return nil, err
	}

	totals, excl := s.agg.Accumulate(result.Results, schema)

	if strategy.Shape == period.ShapeCumulative {
		diff, negatives := period.Difference(totals, strategy.PriorTotals)
		for _, code := range negatives {
			s.log.Warn().
				Str("category", string(code)).
				Msg("negative cumulative difference clamped to zero, check earlier period figures")
			warnings = append(warnings, "negative cumulative difference for "+string(code)+" clamped to zero")
		}
		totals = diff
	}

	report := s.agg.BuildReport(totals, schema, excl, result.Counts, target)
	report.Warnings = warnings
	if result.SystemicFailure {
		report.Warnings = append(report.Warnings, "classifier failures affected most rows, results may be incomplete")
	}
	return report, nil
}

// terminalCheck surfaces the single terminal failure condition: a non-empty
// submission where not one row resolved to any disposition. Rows left
// unprocessed by cancellation count as a disposition, so a cancelled run
// still yields its partial result.
func terminalCheck(total int, result *classify.BatchResult) error {
	if total == 0 {
		return nil
	}
	c := result.Counts
	if c.Successful == 0 && c.Personal == 0 && c.ManualReview == 0 && c.NotProcessed == 0 {
		return &classify.Error{
			Code:    classify.ErrNoClassifiableTransactions,
			Message: "no transactions could be classified",
		}
	}
	return nil
}
