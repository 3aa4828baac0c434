package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundrecorder/internal/server"
	"github.com/audiolibrelab/soundrecorder/internal/service"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the web server for remote control",
	Long: `Start the web server to control the recorder from a browser.
This allows you to record from your smartphone or any device on the same network.

Takes are saved in the output directory under the name given in the page,
or a timestamped name when none is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Server.Port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(cfg, cfgFile, service.Options{})
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}

		var wg conc.WaitGroup
		wg.Go(func() {
			if err := svc.Run(ctx); err != nil {
				slog.Error("Session stopped", "error", err)
			}
		})
		defer wg.Wait()

		slog.Info("Sound recorder web server starting", "port", port, "config", cfgFile, "profile", cfg.Profile)

		if err := server.New(svc, port).Start(ctx); err != nil {
			stop()
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (default from server.port)")
}
