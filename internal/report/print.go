package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Print outputs a human-readable run report.
func Print(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- End-to-End Test Results ---")
	fmt.Fprintf(w, "Phases:            %d\n", r.Total)
	fmt.Fprintf(w, "Passed:            %d\n", r.Passed)
	fmt.Fprintf(w, "Failed:            %d\n", r.Failed)
	fmt.Fprintf(w, "Success Rate:      %.1f%%\n", r.SuccessRate)
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration.Round(time.Millisecond))

	fmt.Fprintln(w, "\nPhase Breakdown:")
	for _, p := range r.Phases {
		status := "PASS"
		if !p.Success {
			status = "FAIL"
		}
		line := fmt.Sprintf("  [%s] %s (%s)", status, p.Name, p.Duration.Round(time.Millisecond))
		if p.Message != "" {
			line += ": " + p.Message
		}
		fmt.Fprintln(w, line)
	}

	if len(r.Users) > 0 {
		fmt.Fprintln(w, "\nUsers:")
		for _, u := range r.Users {
			fmt.Fprintf(w, "  - %s: %d messages stored\n", u.Name, u.Messages)
		}
	}

	if r.Group != nil {
		fmt.Fprintln(w, "\nGroup:")
		fmt.Fprintf(w, "  %s (%s)\n", r.Group.GroupName, r.Group.GroupID)
		if r.Group.SessionID != "" {
			fmt.Fprintf(w, "  Onboarding session: %s (%d invited)\n", r.Group.SessionID, len(r.Group.InvitedIDs))
		}
		fmt.Fprintf(w, "  Members: %s\n", strings.Join(r.Group.Members, ", "))
	}

	if len(r.Probes) > 0 {
		fmt.Fprintln(w, "\nError Probes:")
		for _, p := range r.Probes {
			status := "PASS"
			if !p.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(w, "  [%s] %s: %s\n", status, p.Name, p.Detail)
		}
	}

	fmt.Fprintln(w, "\nStore Verification:")
	for _, st := range r.Stores {
		if st.Error != "" {
			fmt.Fprintf(w, "  - %s: ERROR %s\n", st.Name, st.Error)
			continue
		}
		fmt.Fprintf(w, "  - %s: %d tables, %d rows (%s)\n", st.Name, st.Tables, st.Rows, st.Path)
	}
	fmt.Fprintf(w, "  Calendar entries: %d\n", r.CalendarEntries)

	fmt.Fprintln(w, "\nPacing:")
	fmt.Fprintf(w, "  Between messages:  %s\n", r.Pacing.DelayBetweenMessages)
	fmt.Fprintf(w, "  Between users:     %s\n", r.Pacing.DelayBetweenUsers)
	fmt.Fprintf(w, "  Backend wait:      %s\n", r.Pacing.BackendProcessingWait)
	fmt.Fprintf(w, "  Max messages/user: %d\n", r.Pacing.MaxMessagesPerUser)

	if len(r.Ops.Ops) > 0 {
		fmt.Fprintln(w, "\nOperation Latency:")
		for _, op := range r.Ops.Ops {
			fmt.Fprintf(
				w,
				"  - %s: total=%d, failures=%d, mean=%s, p50=%s, p99=%s\n",
				op.Op,
				op.Total,
				op.Failures,
				op.MeanLatency,
				op.P50Latency,
				op.P99Latency,
			)
		}
	}

	fmt.Fprintf(w, "\nReadiness: %s\n", readinessLabel(r.Readiness))
}

// PrintJSON outputs a JSON-formatted report.
func PrintJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func readinessLabel(tier string) string {
	switch tier {
	case ReadinessExcellent:
		return "EXCELLENT - the system is ready"
	case ReadinessGood:
		return "GOOD - minor issues to address"
	default:
		return "NEEDS WORK - significant failures found"
	}
}
