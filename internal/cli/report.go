package cli

import (
	"fmt"
	"strings"

	"github.com/unearth-dev/unearth/internal/pipeline"
)

// releaseReport is the JSON shape of one release's outcome.
type releaseReport struct {
	Release string       `json:"release"`
	Outcome string       `json:"outcome"`
	Steps   []stepReport `json:"steps,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type stepReport struct {
	Step    string `json:"step"`
	Outcome string `json:"outcome"`
}

// reportData converts a run result to the JSON report payload.
func reportData(result *pipeline.RunResult) []releaseReport {
	var out []releaseReport
	for _, rel := range result.Releases() {
		r := releaseReport{
			Release: rel.Release.Name(),
			Outcome: rel.Outcome.String(),
		}
		for _, s := range rel.Steps {
			r.Steps = append(r.Steps, stepReport{Step: s.Worker, Outcome: s.Outcome.String()})
		}
		if rel.Err != nil {
			r.Error = rel.Err.Error()
		}
		out = append(out, r)
	}
	return out
}

// renderReport renders the text report: one line per release with its
// aggregate outcome, step detail indented beneath, and a trailing summary.
func renderReport(result *pipeline.RunResult) string {
	var b strings.Builder

	counts := make(map[pipeline.Outcome]int)
	for _, rel := range result.Releases() {
		counts[rel.Outcome]++
		fmt.Fprintf(&b, "%-12s %s\n", rel.Release.Name(), rel.Outcome)
		for _, s := range rel.Steps {
			fmt.Fprintf(&b, "    %-12s %s\n", s.Worker, s.Outcome)
		}
		if rel.Err != nil {
			fmt.Fprintf(&b, "    error: %v\n", rel.Err)
		}
	}

	fmt.Fprintf(&b, "\n%d release(s): %d succeeded, %d up to date, %d skipped, %d failed\n",
		len(result.Releases()),
		counts[pipeline.OutcomeSuccess],
		counts[pipeline.OutcomeUpToDate],
		counts[pipeline.OutcomeNotRun],
		counts[pipeline.OutcomeFailed],
	)
	return b.String()
}
