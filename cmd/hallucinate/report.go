package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// jsonReport is the top-level --output shape: verdicts plus a run
// identifier so multiple reports from the same document can be told apart.
type jsonReport struct {
	RunID    string                   `json:"run_id"`
	Verdicts []types.ReferenceVerdict `json:"verdicts"`
}

// progressPrinter renders ProgressEvents to stderr as verification runs,
// leaving stdout/the --output file for the final report. It must be
// callable concurrently, since the engine emits events from many goroutines.
type progressPrinter struct {
	mu sync.Mutex
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{}
}

func (p *progressPrinter) handle(ev types.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case types.EventRefCompleted:
		if ev.Verdict.IsHallucinationCandidate() {
			fmt.Fprintf(os.Stderr, "%s [%d] %s\n", color.RedString("MISSING"), ev.ReferenceIndex, ev.Title)
		} else if ev.Verdict.AnyFound() {
			fmt.Fprintf(os.Stderr, "%s  [%d] %s\n", color.GreenString("FOUND"), ev.ReferenceIndex, ev.Title)
		}
	}
}

// writeJSONReport writes verdicts as a JSON document to path, tagged with
// a fresh run ID.
func writeJSONReport(path string, verdicts []types.ReferenceVerdict) error {
	report := jsonReport{RunID: uuid.NewString(), Verdicts: verdicts}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// printSummary prints a short human-readable tally to stdout.
func printSummary(verdicts []types.ReferenceVerdict) {
	var found, missing, unverified int
	for _, v := range verdicts {
		switch {
		case v.AnyFound():
			found++
		case v.IsHallucinationCandidate():
			missing++
		default:
			unverified++
		}
	}

	fmt.Printf("%d references checked: %s, %s, %d could not be verified\n",
		len(verdicts),
		color.GreenString("%d confirmed", found),
		color.RedString("%d likely hallucinated", missing),
		unverified,
	)
}
