package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hotstory/radar/config"
	srv "github.com/hotstory/radar/internal/server"
)

func workerCMD() *cobra.Command {
	var cfgPath string
	var worker = &cobra.Command{
		Use:   "worker",
		Short: "Run background maintenance routines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(log.Writer(), "[WORKER] ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := srv.NewComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			return deps.Worker.Start(ctx)
		},
	}
	worker.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return worker
}
