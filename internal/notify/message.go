package notify

import (
	"fmt"
	"strings"
	"time"
)

// Report summarises one run for the operator.
type Report struct {
	RunID       string
	FirstRun    bool
	DryRun      bool
	Subscribers int
	Digests     int
	Albums      int
	Sent        int
	Failed      int
	Errors      []string
}

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(r *Report, duration time.Duration) string {
	var sb strings.Builder

	if r.FirstRun {
		sb.WriteString("First run: checkpoint created\n")
	}
	sb.WriteString(fmt.Sprintf("Subscribers: %d\n", r.Subscribers))
	sb.WriteString(fmt.Sprintf("Digests: %d\n", r.Digests))
	sb.WriteString(fmt.Sprintf("Albums: %d\n", r.Albums))
	if r.DryRun {
		sb.WriteString("Sent: none (dry run)\n")
	} else {
		sb.WriteString(fmt.Sprintf("Sent: %d\n", r.Sent))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(r *Report, duration time.Duration, err error) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Subscribers: %d\n", r.Subscribers))
	sb.WriteString(fmt.Sprintf("Digests: %d\n", r.Digests))
	sb.WriteString(fmt.Sprintf("Sent: %d\n", r.Sent))
	sb.WriteString(fmt.Sprintf("Failed: %d\n", r.Failed))
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	}

	// Include first 3 error messages if available
	if len(r.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := min(3, len(r.Errors))
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("- %s\n", r.Errors[i]))
		}
		if len(r.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("... and %d more errors", len(r.Errors)-3))
		}
	}

	return sb.String()
}
