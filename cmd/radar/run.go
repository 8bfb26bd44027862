package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hotstory/radar/config"
	srv "github.com/hotstory/radar/internal/server"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var save bool
	var run = &cobra.Command{
		Use:   "run",
		Short: "Run the radar pipeline once and print the stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(os.Stderr, "[RADAR] ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := srv.NewComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			resp, err := deps.Pipeline.Run(ctx)
			if err != nil {
				return err
			}
			if save {
				if _, err := deps.Store.SaveRadarRun(ctx, resp); err != nil {
					logger.Printf("saving radar run: %v", err)
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	run.Flags().BoolVar(&save, "save", true, "persist the run so the API can serve it")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
