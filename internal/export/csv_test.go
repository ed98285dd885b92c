package export

import (
	"bytes"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/orrn/printsim/internal/core"
)

func completed(id string, jt core.JobType, printer int64, priority int, at time.Time) core.Job {
	return core.Job{ID: id, Type: jt, PrinterID: printer, Priority: priority, Status: core.JobStatusCompleted, CompletedAt: &at}
}

func TestWriteCSV(t *testing.T) {
	at := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	jobs := []core.Job{
		completed("PDF3", core.JobTypePDF, 2, 1, at),
		completed("IMG1", core.JobTypeImg, 5, 4, at.Add(-time.Hour)),
	}

	var buf bytes.Buffer
	assert.NilError(t, WriteCSV(&buf, jobs))

	want := "Job ID,Type,Printer,Priority,Completed At,Status\n" +
		"PDF3,pdf,Printer 2,1,2024-07-01T09:30:00Z,Success\n" +
		"IMG1,img,Printer 5,4,2024-07-01T08:30:00Z,Success\n"
	assert.Equal(t, buf.String(), want)
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.NilError(t, WriteCSV(&buf, nil))
	assert.Equal(t, buf.String(), "Job ID,Type,Printer,Priority,Completed At,Status\n")
}

func TestFilter(t *testing.T) {
	at := time.Now()
	jobs := []core.Job{
		completed("PDF1", core.JobTypePDF, 1, 1, at),
		completed("DOC2", core.JobTypeDoc, 1, 1, at),
		completed("IMG12", core.JobTypeImg, 1, 1, at),
	}

	assert.Check(t, is.Len(Filter(jobs, ""), 3))
	assert.Check(t, is.Len(Filter(jobs, " doc "), 1))
	assert.Check(t, is.Len(Filter(jobs, "1"), 2))
	assert.Check(t, is.Len(Filter(jobs, "zip"), 0))
}
