package core

import (
	"strings"
	"time"
)

type JobType string

const (
	JobTypePDF JobType = "pdf"
	JobTypeDoc JobType = "doc"
	JobTypeImg JobType = "img"
)

func ParseJobType(s string) (JobType, bool) {
	switch t := JobType(strings.ToLower(strings.TrimSpace(s))); t {
	case JobTypePDF, JobTypeDoc, JobTypeImg:
		return t, true
	}
	return "", false
}

type JobStatus string

const (
	JobStatusQueued     JobStatus = "Queued"
	JobStatusProcessing JobStatus = "Processing"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusDelayed    JobStatus = "Delayed"
)

const (
	MinPriority = 1
	MaxPriority = 5

	DefaultReason = "None"
)

func ValidPriority(p int) bool {
	return p >= MinPriority && p <= MaxPriority
}

// Job is a print job. PrinterID is zero while the job is unassigned and is
// kept on completed jobs as a record of where it ran.
type Job struct {
	ID          string     `json:"id" yaml:"id"`
	Type        JobType    `json:"type" yaml:"type"`
	Priority    int        `json:"priority" yaml:"priority"`
	Status      JobStatus  `json:"status" yaml:"status"`
	Reason      string     `json:"reason" yaml:"reason"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Progress    float64    `json:"progress" yaml:"progress"`
	PrinterID   int64      `json:"printer_id,omitempty" yaml:"printer_id,omitempty"`

	seq   uint64
	index int
}

func (j *Job) clone() Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	c.index = -1
	return c
}

type PrinterStatus string

const (
	PrinterStatusOnline  PrinterStatus = "Online"
	PrinterStatusOffline PrinterStatus = "Offline"
	// Maintenance and Error are reserved: no operation moves a printer into them.
	PrinterStatusMaintenance PrinterStatus = "Maintenance"
	PrinterStatusError       PrinterStatus = "Error"
)

type Printer struct {
	ID                 int64         `json:"id" yaml:"id"`
	Name               string        `json:"name" yaml:"name"`
	Status             PrinterStatus `json:"status" yaml:"status"`
	TotalJobsProcessed int64         `json:"total_jobs_processed" yaml:"total_jobs_processed"`
	Efficiency         int           `json:"efficiency" yaml:"efficiency"`
}

// Container names the store that currently owns a job.
type Container string

const (
	ContainerNone      Container = ""
	ContainerQueue     Container = "queue"
	ContainerActive    Container = "active"
	ContainerCompleted Container = "completed"
)

type Snapshot struct {
	Revision    uint64        `json:"revision" yaml:"revision"`
	QueuedJobs  []Job         `json:"queued_jobs" yaml:"queued_jobs"`
	ActiveJobs  []Job         `json:"active_jobs" yaml:"active_jobs"`
	Completed   []Job         `json:"completed_jobs" yaml:"completed_jobs"`
	Printers    []Printer     `json:"printers" yaml:"printers"`
	LogEntries  []string      `json:"log_entries" yaml:"log_entries"`
	AutoProcess bool          `json:"automatic_processing_enabled" yaml:"automatic_processing_enabled"`
	TickPeriod  time.Duration `json:"-" yaml:"tick_period"`
	TickMillis  int64         `json:"tick_period_ms" yaml:"-"`
}
