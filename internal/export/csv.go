package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/orrn/printsim/internal/core"
)

const Filename = "print_job_history.csv"

var header = []string{"Job ID", "Type", "Printer", "Priority", "Completed At", "Status"}

// WriteCSV renders completed jobs in the order given.
func WriteCSV(w io.Writer, jobs []core.Job) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, job := range jobs {
		completedAt := ""
		if job.CompletedAt != nil {
			completedAt = job.CompletedAt.Format(time.RFC3339)
		}
		record := []string{
			job.ID,
			string(job.Type),
			fmt.Sprintf("Printer %d", job.PrinterID),
			strconv.Itoa(job.Priority),
			completedAt,
			"Success",
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", job.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filter keeps jobs whose id or type contains search, ignoring case.
func Filter(jobs []core.Job, search string) []core.Job {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return jobs
	}
	out := make([]core.Job, 0, len(jobs))
	for _, job := range jobs {
		if strings.Contains(strings.ToLower(job.ID), search) || strings.Contains(strings.ToLower(string(job.Type)), search) {
			out = append(out, job)
		}
	}
	return out
}
