// Command drivedqn trains, runs and serves a deep Q-learning agent that
// learns to drive a car around a track.
package main

import (
	"os"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/experiment"
	"github.com/spf13/cobra"
)

var (
	configFile string
	seed       uint64

	// shutdown holds cleanup run before the program exits
	shutdown []func()
)

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "drivedqn",
		Short:        "Deep Q-learning agent for driving a car around a track",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"JSON experiment configuration, defaults are used if empty")
	cmd.PersistentFlags().Uint64VarP(&seed, "seed", "s", 192382,
		"seed for the agent and environment")

	cmd.AddCommand(trainCommand(), driveCommand(), serveCommand(),
		renderCommand())
	return cmd
}

// loadConfig returns the experiment configuration named by --config
func loadConfig() (experiment.Config, error) {
	if configFile == "" {
		return experiment.DefaultConfig()
	}
	return experiment.LoadConfig(configFile)
}

func main() {
	err := rootCommand().Execute()
	for _, f := range shutdown {
		f()
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
