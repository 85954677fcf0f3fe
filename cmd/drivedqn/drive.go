package main

import (
	"github.com/samuelfneumann/drivedqn/experiment"
	"github.com/spf13/cobra"
)

func driveCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Train the agent frame by frame as the game engine would",
		Long: "Drive advances the track simulation one frame at a time and " +
			"calls into the agent after each frame, in the same way a game " +
			"engine calls into the bridge.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(experiment.DriveExp, f)
		},
	}
	f.register(cmd)
	return cmd
}
