package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundrecorder/internal/prompt"
	"github.com/audiolibrelab/soundrecorder/internal/service"
)

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record one take without the interactive prompt",
	Long: `Record from the configured input until Ctrl+C, then save the take in the
output directory as <name>.wav, or under a timestamped name when no name is given.

The command fails as soon as the capture tool does.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		slog.Info("Record command started", "name", name)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		return recordOnce(cmd.Context(), name, sigChan, os.Stdout)
	},
}

// failureNotifier hands the first session error to the waiting command.
type failureNotifier chan error

func (f failureNotifier) NotifyError(op string, err error) {
	select {
	case f <- fmt.Errorf("failed to %s: %w", op, err):
	default:
	}
}

func (f failureNotifier) NotifyInfo(string) {}

// recordOnce records until stop fires and saves the take under name.
func recordOnce(ctx context.Context, name string, stop <-chan os.Signal, out io.Writer) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(failureNotifier, 1)
	svc, err := service.New(cfg, cfgFile, service.Options{Notifier: failures})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := svc.Run(runCtx); err != nil {
			slog.Error("Session stopped", "error", err)
		}
	})
	defer wg.Wait()
	defer cancel()

	if err := svc.StartRecording(runCtx); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	slog.Info("Recording... Press Ctrl+C to stop")

	select {
	case <-stop:
	case err := <-failures:
		return err
	case <-runCtx.Done():
		return runCtx.Err()
	}
	slog.Info("Stopping recording...")

	if err := svc.StopRecording(prompt.WithName(runCtx, name)); err != nil {
		return fmt.Errorf("failed to stop recording: %w", err)
	}
	if msg := svc.GetLastError(); msg != "" {
		return fmt.Errorf("%s", msg)
	}

	fmt.Fprintln(out, svc.GetLastMessage())
	return nil
}
