package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orrn/printsim/internal/config"
	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/logging"
)

type simulateOptions struct {
	jobs    string
	ticks   int
	seed    int64
	auto    bool
	verbose bool
}

type jobSpec struct {
	jobType  core.JobType
	priority int
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:     "simulate",
		Short:   "Run a headless simulation and print the final snapshot as YAML",
		Example: "  printsim simulate --jobs pdf:1,doc:3,img:2 --ticks 40 --seed 7",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate(cmd.OutOrStdout(), cmd.ErrOrStderr(), root.configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.jobs, "jobs", "", "Comma separated type:priority list, e.g. pdf:1,doc:3")
	cmd.Flags().IntVar(&opts.ticks, "ticks", 20, "Number of ticks to run")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed (0 picks one from the clock)")
	cmd.Flags().BoolVar(&opts.auto, "auto", true, "Enable automatic processing")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Log engine events to stderr")
	return cmd
}

func simulate(out, errOut io.Writer, configPath string, opts *simulateOptions) error {
	if opts.ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", opts.ticks)
	}
	specs, err := parseJobSpecs(opts.jobs)
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	cfg.Simulation.Seed = opts.seed
	cfg.Simulation.AutoProcess = opts.auto

	logger := logging.Discard()
	if opts.verbose {
		logger, err = logging.New(config.LoggingConfig{Level: "info", Format: "plain"}, errOut)
		if err != nil {
			return err
		}
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		if _, err := engine.Submit(spec.jobType, spec.priority); err != nil {
			return err
		}
	}
	for i := 0; i < opts.ticks; i++ {
		engine.Tick()
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(engine.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return enc.Close()
}

func parseJobSpecs(s string) ([]jobSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var specs []jobSpec
	for _, part := range strings.Split(s, ",") {
		name, prio, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			return nil, fmt.Errorf("job %q: expected type:priority", part)
		}
		jobType, ok := core.ParseJobType(name)
		if !ok {
			return nil, fmt.Errorf("job %q: unknown type %q", part, name)
		}
		priority, err := cast.ToIntE(strings.TrimSpace(prio))
		if err != nil || !core.ValidPriority(priority) {
			return nil, fmt.Errorf("job %q: priority must be %d-%d", part, core.MinPriority, core.MaxPriority)
		}
		specs = append(specs, jobSpec{jobType: jobType, priority: priority})
	}
	return specs, nil
}
