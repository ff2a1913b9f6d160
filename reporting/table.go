package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// FormatTable renders the scorecard as a table, coloured by the overall status.
func FormatTable(sc types.Scorecard) string {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(fmt.Sprintf("Acceptance Results (run %s)", sc.RunID))

	t.AppendHeader(table.Row{"#", "Description", "Actual", "Duration", "Points", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Description", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Actual", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Points", Align: text.AlignRight},
	})

	for i, o := range sc.Outcomes {
		t.AppendRow(table.Row{
			i + 1,
			o.Description,
			o.Actual,
			formatDuration(time.Duration(o.DurationMS) * time.Millisecond),
			fmt.Sprintf("%d/%d", o.PointsAwarded, o.PointsAvailable),
			strings.ToUpper(string(o.Status)),
		})
	}

	switch sc.Status {
	case types.TestStatusFail:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case types.TestStatusPending:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed", sc.Stats.Passed, sc.Stats.Failed),
		formatDuration(sc.Duration()),
		fmt.Sprintf("%d/%d", sc.TotalPointsAwarded, sc.TotalPointsAvailable),
		strings.ToUpper(string(sc.Status)),
	})

	t.Render()
	return buf.String()
}

// RenderTable writes the table for sc to w.
func RenderTable(w io.Writer, sc types.Scorecard) error {
	_, err := io.WriteString(w, FormatTable(sc))
	return err
}
