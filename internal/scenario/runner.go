package scenario

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"autctl/internal/fixture"
	"autctl/internal/protocol"
	"autctl/pkg/logging"
)

const subsystem = "Scenario"

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Label    string
	Expect   Expectation
	Got      string
	Passed   bool
	Err      error
	Duration time.Duration
}

// Report is the outcome of one scenario run.
type Report struct {
	RunID    string
	Scenario string
	Steps    []StepResult
	Duration time.Duration
}

// Passed reports whether every step met its expectation.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if !s.Passed {
			return false
		}
	}
	return true
}

// Failed returns the number of failed steps.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed {
			n++
		}
	}
	return n
}

// Runner executes scenarios through a fixture.
type Runner struct {
	fixture *fixture.Fixture
}

// NewRunner creates a Runner.
func NewRunner(f *fixture.Fixture) *Runner {
	return &Runner{fixture: f}
}

// Run starts executable, executes every step and tears the AUT down. A
// failed step does not stop the run; the error is non-nil only when the
// AUT could not be started.
func (r *Runner) Run(ctx context.Context, sc *Scenario, executable string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Scenario: sc.Name}

	if sc.Elements != "" {
		list, err := fixture.LoadElementList(sc.Elements)
		if err != nil {
			return report, err
		}
		r.fixture.SetElementList(list)
	}
	r.fixture.Controller().SetTestName(sc.EffectiveTestName())

	logging.Info(subsystem, "Run %s: scenario %q with %d steps", report.RunID, sc.Name, len(sc.Steps))
	start := time.Now()

	if err := r.fixture.StartApplication(ctx, executable); err != nil {
		return report, fmt.Errorf("start AUT: %w", err)
	}
	defer func() {
		if err := r.fixture.TearDown(context.WithoutCancel(ctx)); err != nil {
			logging.Error(subsystem, err, "Tear down after run %s failed", report.RunID)
		}
	}()

	for i, st := range sc.Steps {
		res := r.runStep(ctx, i+1, st)
		report.Steps = append(report.Steps, res)
		if res.Passed {
			logging.Info(subsystem, "Step %d %s passed", res.Index, res.Label)
		} else {
			logging.Warn(subsystem, "Step %d %s failed: expected %s, got %s", res.Index, res.Label, res.Expect, res.Got)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, index int, st Step) (out StepResult) {
	args := st.Args
	if st.Element != "" {
		args = append([]string{r.fixture.Resolve(st.Element)}, st.Args...)
	}
	res := StepResult{Index: index, Label: fixture.Label(st.Command, args...), Expect: st.Expect}
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	if st.Command == WaitCommand {
		ok, err := r.fixture.WaitSeconds(ctx, st.Args[0])
		return evaluate(res, st, fmt.Sprint(ok), err)
	}

	if st.Expect == ExpectText {
		got, err := r.sendText(ctx, st)
		return evaluate(res, st, got, err)
	}

	var ok bool
	var err error
	if st.Element != "" {
		ok, err = r.fixture.Call(ctx, st.Command, st.Element, st.Args...)
	} else {
		ok, err = r.fixture.Send(ctx, st.Command, st.Args...)
	}
	return evaluate(res, st, fmt.Sprint(ok), err)
}

func (r *Runner) sendText(ctx context.Context, st Step) (string, error) {
	if st.Element != "" {
		return r.fixture.Text(ctx, st.Command, st.Element, st.Args...)
	}
	msg, err := protocol.NewMessage(st.Command, st.Args...)
	if err != nil {
		return "", err
	}
	return r.fixture.Controller().Client().SendText(ctx, msg)
}

func evaluate(res StepResult, st Step, got string, err error) StepResult {
	res.Err = err
	if err != nil {
		res.Got = "error"
		res.Passed = st.Expect == ExpectError && protocol.IsProtocolError(err)
		return res
	}
	res.Got = got
	switch st.Expect {
	case ExpectText:
		res.Passed = got == st.Text
	case ExpectTrue, ExpectFalse:
		res.Passed = got == string(st.Expect)
	}
	return res
}

// Render writes the report as a table.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s (run %s, %s)", r.Scenario, r.RunID, r.Duration.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"#", "Step", "Expected", "Got", "Time", "Result"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Step", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Time", Align: text.AlignRight},
	})
	for _, s := range r.Steps {
		result := text.FgGreen.Sprint("PASS")
		if !s.Passed {
			result = text.FgRed.Sprint("FAIL")
		}
		t.AppendRow(table.Row{s.Index, s.Label, string(s.Expect), s.Got, s.Duration.Round(time.Millisecond), result})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d steps", len(r.Steps)), "", "", "", fmt.Sprintf("%d failed", r.Failed())})
	t.Render()
}
