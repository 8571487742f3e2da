package period

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// Layout is the row shape detected inside a section.
type Layout int

const (
	// LayoutTransactions is an itemized transaction list that must still go
	// through per-row classification.
	LayoutTransactions Layout = iota
	// LayoutSummaryBox is a fixed set of numbered fields whose values are
	// already aggregated per official code, bypassing classification.
	LayoutSummaryBox
)

// SectionNotFoundError reports a missing period label. The message is
// user-actionable: the fix is in the spreadsheet, not the system.
type SectionNotFoundError struct {
	Target Period
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("no section found for %s: please ensure the sheet contains a %q label",
		e.Target, e.Target.Label())
}

var (
	sectionLabel = regexp.MustCompile(`(?i)\bq(?:uarter)?\s*([1-4])\b`)
	boxRow       = regexp.MustCompile(`(?i)^\s*(?:box\s*)?(\d{1,2})\s*[:.\-]`)
	amountChars  = regexp.MustCompile(`[£$€,\s]`)
)

// ExtractSection locates period-labelled boundaries in a multi-period sheet
// and returns only the target period's rows plus the detected row layout.
// Each section runs from its label row (exclusive) to the next label row
// (exclusive) or end-of-data.
func ExtractSection(records []map[string]string, target Period) ([]map[string]string, Layout, error) {
	type boundary struct {
		index  int
		period Period
	}
	var boundaries []boundary
	for i, record := range records {
		if p, ok := labelPeriod(record); ok {
			boundaries = append(boundaries, boundary{index: i, period: p})
		}
	}
	sort.SliceStable(boundaries, func(i, j int) bool { return boundaries[i].index < boundaries[j].index })

	for i, b := range boundaries {
		if b.period != target {
			continue
		}
		start := b.index + 1
		end := len(records)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].index
		}
		section := records[start:end]
		return section, detectLayout(section), nil
	}

	return nil, LayoutTransactions, &SectionNotFoundError{Target: target}
}

// labelPeriod reports whether a record is a section label row. A label row
// mentions a quarter and carries no parseable amount of its own.
func labelPeriod(record map[string]string) (Period, bool) {
	joined := joinValues(record)
	m := sectionLabel.FindStringSubmatch(joined)
	if m == nil {
		return 0, false
	}
	if _, ok := recordAmount(record); ok {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return Period(n), true
}

// detectLayout distinguishes summary-box rows from itemized transactions. A
// section is box-shaped when most of its populated rows lead with a box
// number.
func detectLayout(section []map[string]string) Layout {
	populated, boxLike := 0, 0
	for _, record := range section {
		desc := descriptionValue(record)
		if desc == "" {
			continue
		}
		populated++
		if boxRow.MatchString(desc) {
			boxLike++
		}
	}
	if populated > 0 && boxLike*2 > populated {
		return LayoutSummaryBox
	}
	return LayoutTransactions
}

// BoxCode maps a summary-box number onto the official code at that position
// in the schema's non-capital vocabulary. Box numbering starts at 1.
func BoxCode(schema *category.Schema, box int) (category.Code, bool) {
	codes := schema.NonCapital()
	if box < 1 || box > len(codes) {
		return "", false
	}
	return codes[box-1], true
}

// BoxTotals reads a summary-box section into pre-aggregated category totals.
// Rows with unrecognized box numbers are reported back so the caller can
// surface them as data-quality warnings.
func BoxTotals(section []map[string]string, schema *category.Schema) (category.Totals, []string) {
	totals := category.NewTotals(schema)
	var unmapped []string

	for _, record := range section {
		desc := descriptionValue(record)
		m := boxRow.FindStringSubmatch(desc)
		if m == nil {
			continue
		}
		amount, ok := recordAmount(record)
		if !ok {
			continue
		}
		box, _ := strconv.Atoi(m[1])
		code, ok := BoxCode(schema, box)
		if !ok {
			unmapped = append(unmapped, desc)
			continue
		}
		totals.Add(code, amount)
	}
	return totals, unmapped
}

func joinValues(record map[string]string) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, record[k])
	}
	return strings.Join(parts, " ")
}

func descriptionValue(record map[string]string) string {
	for _, f := range []string{"description", "Description", "details", "Details", "field", "Field", "box", "Box"} {
		if v, ok := record[f]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func recordAmount(record map[string]string) (decimal.Decimal, bool) {
	for _, f := range []string{"amount", "Amount", "value", "Value", "total", "Total"} {
		raw, ok := record[f]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		s := amountChars.ReplaceAllString(strings.TrimSpace(raw), "")
		if s == "" {
			continue
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d.Abs(), true
		}
	}
	return decimal.Zero, false
}
