package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/agent/deepq"
	"github.com/samuelfneumann/drivedqn/experiment"
	"github.com/samuelfneumann/drivedqn/experiment/checkpointer"
	"github.com/samuelfneumann/drivedqn/experiment/tracker"
	"github.com/samuelfneumann/progressbar"
	"github.com/spf13/cobra"
)

// runFlags are the overrides shared by the train and drive commands
type runFlags struct {
	steps      uint
	scoreFile  string
	returnFile string
	lengthFile string
	snapshots  string
	snapEvery  int
	progress   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().UintVarP(&f.steps, "steps", "n", 0,
		"number of steps to run for, overrides the configuration")
	cmd.Flags().StringVar(&f.scoreFile, "scores", "",
		"file to save episode scores to, overrides the configuration")
	cmd.Flags().StringVar(&f.returnFile, "returns", "",
		"file to save episode returns to")
	cmd.Flags().StringVar(&f.lengthFile, "lengths", "",
		"file to save episode lengths to")
	cmd.Flags().StringVar(&f.snapshots, "snapshots", "",
		"path prefix of numbered network snapshots, none are kept if empty")
	cmd.Flags().IntVar(&f.snapEvery, "snapshot-every", 50_000,
		"steps between network snapshots")
	cmd.Flags().BoolVarP(&f.progress, "progress", "p", true,
		"display a progress bar")
}

func trainCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the agent by stepping the configured environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(experiment.OnlineExp, f)
		},
	}
	f.register(cmd)
	return cmd
}

// run creates and runs an experiment of type typ, then saves the agent
// and all tracked data
func run(typ experiment.Type, f runFlags) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	c.Type = typ
	if f.steps > 0 {
		c.MaxSteps = f.steps
	}
	if f.scoreFile != "" {
		c.ScoreFile = f.scoreFile
	}

	var trackers []tracker.Tracker
	if f.returnFile != "" {
		trackers = append(trackers, tracker.NewReturn(f.returnFile))
	}
	if f.lengthFile != "" {
		trackers = append(trackers, tracker.NewEpisodeLength(f.lengthFile))
	}

	exp, agent, err := c.CreateExp(seed, trackers, nil)
	if err != nil {
		return err
	}
	if f.snapshots != "" {
		if err := snapshot(exp, agent, f); err != nil {
			return err
		}
	}
	log.Infof("running %v experiment for %v steps on %v", typ, c.MaxSteps,
		c.EnvConf.Environment)

	if f.progress {
		bar := progressbar.New(50, int(c.MaxSteps), time.Second,
			true)
		switch e := exp.(type) {
		case *experiment.Online:
			e.OnStep = bar.Increment
		case *experiment.Drive:
			e.OnStep = bar.Increment
		}
		bar.Display()
		defer bar.Close()
	}

	start := time.Now()
	if err := exp.Run(); err != nil {
		if errors.Is(err, deepq.ErrCheckpoint) {
			log.Fatalf("could not restore agent: %v", err)
		}
		return fmt.Errorf("%v: %w", typ, err)
	}
	log.Successf("finished in %v: epsilon %.4f, %v gradient steps",
		time.Since(start), agent.Epsilon(), agent.GradientSteps())

	if err := exp.Save(); err != nil {
		return fmt.Errorf("%v: %w", typ, err)
	}
	log.Infof("agent saved to %v", agent.CheckpointPath())
	return nil
}

// snapshot keeps a numbered copy of the agent's network every
// f.snapEvery steps
func snapshot(exp experiment.Experiment, agent *deepq.DeepQ,
	f runFlags) error {
	check, err := checkpointer.NewNStepFiles(f.snapEvery, agent.Network(),
		checkpointer.FilenameEnumerator(0, f.snapshots, ".bin"))
	if err != nil {
		return err
	}

	switch e := exp.(type) {
	case *experiment.Online:
		e.AddCheckpointer(check)
	case *experiment.Drive:
		e.Loop().AddCheckpointer(check)
	}
	return nil
}
