package reporting

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// SummaryTable renders all outcomes of a run, sorted by test name
func SummaryTable(summary Summary, colored bool) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Snapshot Test Results (%s)", formatDuration(summary.Duration)))
	t.AppendHeader(table.Row{"Test", "Status", "Duration", "Failure"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	outcomes := make([]types.Outcome, len(summary.Outcomes))
	copy(outcomes, summary.Outcomes)
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Case.Name < outcomes[j].Case.Name
	})

	for _, o := range outcomes {
		var duration string
		if o.Result != nil {
			duration = formatDuration(o.Result.Duration)
		}
		t.AppendRow(table.Row{
			o.Case.Name,
			getResultString(o.Status()),
			duration,
			FailureKind(o),
		})
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		getResultString(summary.Status()),
		formatDuration(summary.Duration),
		fmt.Sprintf("%d passed, %d updated, %d failed", summary.Passed, summary.Updated, summary.Failed),
	})

	switch {
	case !colored:
		t.SetStyle(table.StyleLight)
	case summary.Status() == types.TestStatusFail:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case summary.Status() == types.TestStatusUpdated:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	return t.Render()
}

func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusUpdated:
		return "↻ updated"
	default:
		return "✗ fail"
	}
}
