package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/agent/deepq"
	"github.com/samuelfneumann/drivedqn/bridge"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent to a game engine over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080",
		"address to listen on")
	return cmd
}

// serve runs the bridge until interrupted and then saves the agent. The
// process exits without saving if the agent fails to restore its
// checkpoint.
func serve(addr string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	if err := c.AgentConf.Validate(); err != nil {
		return err
	}

	agent, err := deepq.NewFromConfig(c.AgentConf, seed)
	if err != nil {
		if errors.Is(err, deepq.ErrCheckpoint) {
			log.Fatalf("could not restore agent: %v", err)
		}
		return err
	}

	b := bridge.New(agent)
	srv := &http.Server{Addr: addr, Handler: b.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Infof("bridge listening on %v", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-b.Done():
		srv.Close()
		log.Fatalf("could not restore agent: %v", b.Err())
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}

	if err := agent.Save(); err != nil {
		return err
	}
	log.Successf("agent saved to %v", agent.CheckpointPath())
	return nil
}
