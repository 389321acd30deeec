package eval

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// WriteSummary prints one line per case and a totals line.
func (r *Report) WriteSummary(w io.Writer) {
	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, res := range r.Results {
		status := pass("PASS")
		if !res.Passed() {
			status = fail("FAIL")
		}
		fmt.Fprintf(w, "%s %s / %s %s\n", status, res.Suite, res.Case, dim(res.Duration.Round(time.Millisecond)))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "    - %s\n", f)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed in %s\n", r.Passed(), r.Failed(), r.Duration.Round(time.Millisecond))
}
