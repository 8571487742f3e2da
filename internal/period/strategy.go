package period

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// Shape describes how the uploaded data relates to the target period.
type Shape int

const (
	ShapeDirect Shape = iota
	ShapeCumulative
	ShapeMultiSection
)

func (s Shape) String() string {
	switch s {
	case ShapeCumulative:
		return "cumulative"
	case ShapeMultiSection:
		return "multi-section"
	default:
		return "direct"
	}
}

// ParseShape parses a caller-declared shape keyword. An unrecognized keyword
// is a hard validation error, never silently reinterpreted.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "single", "single-period":
		return ShapeDirect, nil
	case "cumulative", "running-total", "year-to-date":
		return ShapeCumulative, nil
	case "multi-section", "multisection", "multi_section", "sections":
		return ShapeMultiSection, nil
	default:
		return 0, fmt.Errorf("invalid declared spreadsheet shape: %q (expected direct, cumulative, or multi-section)", s)
	}
}

// StructureAnalysis is the advisory verdict of the remote structural
// analyzer.
type StructureAnalysis struct {
	Shape      Shape
	Confidence float64
}

// StructureAnalyzer judges whether sampled rows look cumulative,
// multi-section, or single-period. Advisory only: resolution falls back to
// direct when analysis fails.
type StructureAnalyzer interface {
	AnalyzeStructure(ctx context.Context, sample []map[string]string, target Period) (StructureAnalysis, error)
}

// Strategy is the resolved interpretation of one submission's spreadsheet.
// Created before classification begins and never mutated afterward.
type Strategy struct {
	Shape       Shape
	PriorTotals category.Totals // set when Shape == ShapeCumulative
	// Degraded marks a strategy that fell back to direct because structural
	// analysis failed.
	Degraded bool
}

// resolverSampleSize bounds how many rows are sent for structural analysis.
const resolverSampleSize = 15

// Resolver decides the strategy for a submission.
type Resolver struct {
	analyzer StructureAnalyzer
	log      zerolog.Logger
}

// NewResolver creates a resolver. analyzer may be nil, in which case
// undeclared later-period submissions resolve to direct with a degraded
// marker.
func NewResolver(analyzer StructureAnalyzer, log zerolog.Logger) *Resolver {
	return &Resolver{analyzer: analyzer, log: log}
}

// Resolve picks the strategy for records targeting period target.
//
// The first chronological period is always direct: there is nothing earlier
// to subtract or separate from. An explicit declaration is authoritative and
// skips analysis; an invalid declaration fails before any classification
// work. Undeclared later periods get one advisory structural-analysis call.
func (r *Resolver) Resolve(ctx context.Context, records []map[string]string, target Period, declared string, prior category.Totals) (Strategy, error) {
	if !target.Valid() {
		return Strategy{}, fmt.Errorf("invalid target period: %d", int(target))
	}

	if target.IsFirst() {
		return Strategy{Shape: ShapeDirect}, nil
	}

	if declared != "" {
		shape, err := ParseShape(declared)
		if err != nil {
			return Strategy{}, err
		}
		return r.withPrior(Strategy{Shape: shape}, prior), nil
	}

	if r.analyzer == nil {
		r.log.Warn().Stringer("period", target).Msg("no structural analyzer configured, assuming direct")
		return Strategy{Shape: ShapeDirect, Degraded: true}, nil
	}

	sample := records
	if len(sample) > resolverSampleSize {
		sample = sample[:resolverSampleSize]
	}
	analysis, err := r.analyzer.AnalyzeStructure(ctx, sample, target)
	if err != nil {
		r.log.Warn().Err(err).Stringer("period", target).
			Msg("structural analysis failed, falling back to direct with degraded confidence")
		return Strategy{Shape: ShapeDirect, Degraded: true}, nil
	}

	r.log.Debug().
		Stringer("shape", analysis.Shape).
		Float64("confidence", analysis.Confidence).
		Msg("structural analysis verdict")
	return r.withPrior(Strategy{Shape: analysis.Shape}, prior), nil
}

func (r *Resolver) withPrior(s Strategy, prior category.Totals) Strategy {
	if s.Shape == ShapeCumulative {
		if prior == nil {
			prior = category.Totals{}
		}
		s.PriorTotals = prior
	}
	return s
}
