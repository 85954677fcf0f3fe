package main

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/environment/track"
	"github.com/spf13/cobra"
)

func renderCommand() *cobra.Command {
	var (
		out    string
		frames int
		action int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the track to a PNG image",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}

			car, err := track.NewCar(c.EnvConf.Track, seed)
			if err != nil {
				return err
			}
			if action < 0 || action >= c.EnvConf.Track.Actions() {
				return fmt.Errorf("render: action %v outside [0, %v)", action,
					c.EnvConf.Track.Actions())
			}

			car.SetBotAction(action)
			for i := 0; i < frames; i++ {
				car.Tick()
			}
			if err := car.Render(out); err != nil {
				return err
			}

			x, y, angle := car.Position()
			log.Infof("rendered frame %v to %v: car at (%.2f, %.2f) "+
				"heading %.2f, next trigger %v", car.Frame(), out, x, y, angle,
				car.NextTrigger())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "track.png", "output image")
	cmd.Flags().IntVarP(&frames, "frames", "f", 0,
		"frames to simulate before rendering")
	cmd.Flags().IntVar(&action, "action", track.NoOp,
		"action held while simulating")
	return cmd
}
