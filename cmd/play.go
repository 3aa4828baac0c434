package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundrecorder/internal/play"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play a saved recording",
	Long: `Play a WAV file with the configured player. A bare name is looked up in the
output directory. Without an argument the newest recording is played.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvePlayPath(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Playing: %s\n", path)
		if err := play.New(cfg.Audio).Play(ctx, path); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}

func resolvePlayPath(args []string) (string, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err == nil {
			return args[0], nil
		}
		return filepath.Join(cfg.Output.Directory, args[0]), nil
	}

	rows, err := scanRecordings(cfg.Output.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to read recordings directory: %w", err)
	}
	for _, r := range rows {
		if r.valid {
			return r.path, nil
		}
	}
	return "", fmt.Errorf("no recordings in %s", cfg.Output.Directory)
}
