package prcheck

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/2beens/traininglog/internal/traininglog"
)

type pairResult struct {
	UserID     string   `json:"userId"`
	ExerciseID string   `json:"exerciseId"`
	Entries    int      `json:"entries"`
	Expected   string   `json:"expected"`
	Flagged    []string `json:"flagged"`
	Consistent bool     `json:"consistent"`
	Repaired   bool     `json:"repaired,omitempty"`
}

type checkOutput struct {
	Pairs        int          `json:"pairs"`
	Inconsistent int          `json:"inconsistent"`
	Repaired     int          `json:"repaired"`
	Results      []pairResult `json:"results"`
}

func newPairResult(report traininglog.PairReport) pairResult {
	flagged := report.Flagged
	if flagged == nil {
		flagged = []string{}
	}
	return pairResult{
		UserID:     report.Pair.UserID,
		ExerciseID: report.Pair.ExerciseID,
		Entries:    report.Entries,
		Expected:   report.Expected,
		Flagged:    flagged,
		Consistent: report.Consistent(),
	}
}

func writeOutput(w io.Writer, format string, out checkOutput) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, r := range out.Results {
		switch {
		case r.Repaired:
			fmt.Fprintf(w, "REPAIRED %s/%s: pr -> %s (was [%s])\n", r.UserID, r.ExerciseID, r.Expected, strings.Join(r.Flagged, ", "))
		case !r.Consistent:
			fmt.Fprintf(w, "BROKEN   %s/%s: expected %s, flagged [%s]\n", r.UserID, r.ExerciseID, r.Expected, strings.Join(r.Flagged, ", "))
		}
	}
	fmt.Fprintf(w, "%d pair(s) checked, %d inconsistent, %d repaired\n", out.Pairs, out.Inconsistent, out.Repaired)
	return nil
}
