package perf

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"autctl/pkg/logging"
)

const subsystem = "Perf"

// TotalTimeKey prefixes the log line consumed by performance dashboards.
const TotalTimeKey = "TOTAL_TIME_FOR_INDIVIDUAL_TEST"

// LogReporter writes the timings to the log.
type LogReporter struct{}

func (LogReporter) Report(testName string, total time.Duration, entries []Entry) {
	for _, e := range entries {
		logging.Debug(subsystem, "%s: %d calls, %d ms", e.Label, e.Calls, e.Total.Milliseconds())
	}
	logging.Info(subsystem, "%s %s: %d ms", TotalTimeKey, testName, total.Milliseconds())
}

// TableReporter renders the timings as a table.
type TableReporter struct {
	Out io.Writer
}

func (r TableReporter) Report(testName string, total time.Duration, entries []Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("Timings for %s", testName))
	t.AppendHeader(table.Row{"Call", "Count", "Time (ms)"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Count", Align: text.AlignRight},
		{Name: "Time (ms)", Align: text.AlignRight},
	})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Label, e.Calls, e.Total.Milliseconds()})
	}
	t.AppendFooter(table.Row{TotalTimeKey, "", total.Milliseconds()})
	t.Render()
}

// MultiReporter fans a report out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(testName string, total time.Duration, entries []Entry) {
	for _, r := range m {
		r.Report(testName, total, entries)
	}
}
