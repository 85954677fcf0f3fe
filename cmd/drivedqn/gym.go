//go:build gym

package main

import "github.com/samuelfneumann/drivedqn/environment/gym"

func init() {
	shutdown = append(shutdown, gym.Shutdown)
}
