package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/orrn/printsim/internal/core"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

type simulated struct {
	Revision  uint64     `yaml:"revision"`
	Queued    []core.Job `yaml:"queued_jobs"`
	Active    []core.Job `yaml:"active_jobs"`
	Completed []core.Job `yaml:"completed_jobs"`
}

func TestSimulateRunsToCompletion(t *testing.T) {
	out, err := run(t, "simulate", "--config", missingConfig(t), "--jobs", "pdf:1,doc:3", "--ticks", "60", "--seed", "7")
	assert.NilError(t, err)

	var snap simulated
	assert.NilError(t, yaml.Unmarshal([]byte(out), &snap))
	assert.Check(t, is.Len(snap.Queued, 0))
	assert.Check(t, is.Len(snap.Active, 0))
	assert.Assert(t, is.Len(snap.Completed, 2))
	for _, job := range snap.Completed {
		assert.Equal(t, job.Progress, 100.0)
		assert.Equal(t, job.Status, core.JobStatusCompleted)
	}
}

func TestSimulateIsDeterministicForSeed(t *testing.T) {
	progress := func() []float64 {
		out, err := run(t, "simulate", "--config", missingConfig(t), "--jobs", "img:2,pdf:2,doc:5", "--ticks", "4", "--seed", "42")
		assert.NilError(t, err)
		var snap simulated
		assert.NilError(t, yaml.Unmarshal([]byte(out), &snap))
		var p []float64
		for _, job := range snap.Active {
			p = append(p, job.Progress)
		}
		return p
	}

	first := progress()
	assert.Assert(t, is.Len(first, 3))
	assert.DeepEqual(t, progress(), first)
}

func TestSimulateWithoutAutoLeavesQueue(t *testing.T) {
	out, err := run(t, "simulate", "--config", missingConfig(t), "--jobs", "pdf:1", "--ticks", "5", "--auto=false")
	assert.NilError(t, err)

	var snap simulated
	assert.NilError(t, yaml.Unmarshal([]byte(out), &snap))
	assert.Assert(t, is.Len(snap.Queued, 1))
	assert.Equal(t, snap.Queued[0].ID, "PDF1")
	assert.Equal(t, snap.Revision, uint64(1))
}

func TestSimulateRejectsBadInput(t *testing.T) {
	cfg := missingConfig(t)

	_, err := run(t, "simulate", "--config", cfg, "--jobs", "zip:1")
	assert.Check(t, is.ErrorContains(err, "unknown type"))

	_, err = run(t, "simulate", "--config", cfg, "--jobs", "pdf")
	assert.Check(t, is.ErrorContains(err, "expected type:priority"))

	_, err = run(t, "simulate", "--config", cfg, "--jobs", "pdf:9")
	assert.Check(t, is.ErrorContains(err, "priority must be 1-5"))

	_, err = run(t, "simulate", "--config", cfg, "--ticks", "-1")
	assert.Check(t, is.ErrorContains(err, "ticks must not be negative"))
}

func TestParseJobSpecs(t *testing.T) {
	specs, err := parseJobSpecs(" PDF:1, doc:3 ,img:5")
	assert.NilError(t, err)
	want := []jobSpec{
		{jobType: core.JobTypePDF, priority: 1},
		{jobType: core.JobTypeDoc, priority: 3},
		{jobType: core.JobTypeImg, priority: 5},
	}
	assert.Assert(t, is.Len(specs, len(want)))
	for i := range want {
		assert.Equal(t, specs[i], want[i])
	}

	specs, err = parseJobSpecs("")
	assert.NilError(t, err)
	assert.Check(t, is.Len(specs, 0))
}

func TestConfigShowAndValidate(t *testing.T) {
	cfg := missingConfig(t)

	out, err := run(t, "config", "show", "--config", cfg)
	assert.NilError(t, err)
	assert.Check(t, is.Contains(out, "port: 8080"))

	out, err = run(t, "config", "show", "--flat", "--config", cfg)
	assert.NilError(t, err)
	assert.Check(t, is.Contains(out, "server.port=8080\n"))
	assert.Check(t, is.Contains(out, "simulation.tick_period=500ms\n"))

	out, err = run(t, "config", "validate", "--config", cfg)
	assert.NilError(t, err)
	assert.Equal(t, out, "configuration is valid\n")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	assert.NilError(t, os.WriteFile(bad, []byte("server:\n  port: 0\n"), 0o644))
	_, err = run(t, "config", "validate", "--config", bad)
	assert.Check(t, is.ErrorContains(err, "server port"))
}
