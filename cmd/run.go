package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundrecorder/internal/display"
	"github.com/audiolibrelab/soundrecorder/internal/prompt"
	"github.com/audiolibrelab/soundrecorder/internal/service"
	"github.com/audiolibrelab/soundrecorder/internal/session"
	"github.com/audiolibrelab/soundrecorder/internal/timer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recorder in the terminal",
	Long: `Run the recorder interactively. Type a key and press Enter:

  r   press Record (start, or stop and save)
  p   press Play (play the last save, or stop)
  q   quit

When a recording stops you are asked for a file name. Relative names are
saved in the configured output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runInteractive(ctx, os.Stdin, os.Stdout)
	},
}

// terminalNotifier prints outcomes below the status line.
type terminalNotifier struct {
	term *display.Terminal
	out  io.Writer
}

func (n terminalNotifier) NotifyError(op string, err error) {
	n.term.Break()
	fmt.Fprintf(n.out, "Failed to %s: %v\n", op, err)
}

func (n terminalNotifier) NotifyInfo(msg string) {
	n.term.Break()
	fmt.Fprintln(n.out, msg)
}

func runInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One reader feeds both the key loop and the save prompt. The prompt
	// only runs while a key press is being handled, so they never race.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	term := display.NewTerminal(out, display.Snapshot{
		TimeText: timer.Text(cfg.Display.Label, 0),
		Record:   display.Presentation{Enabled: true, Label: display.LabelRecord},
		Play:     display.Presentation{Enabled: false, Label: display.LabelPlay},
	})

	svc, err := service.New(cfg, cfgFile, service.Options{
		Prompter: prompt.NewTerminal(lines, out, cfg.Output.Directory, nil),
		Sink:     term,
		Notifier: terminalNotifier{term: term, out: out},
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	fmt.Fprintf(out, "Recording to %s (profile %s). r = record, p = play, q = quit\n", cfg.Output.Directory, cfg.Profile)

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := svc.Run(ctx); err != nil {
			slog.Error("Session stopped", "error", err)
		}
	})
	defer func() {
		cancel()
		wg.Wait()
		term.Break()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			var err error
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "r":
				err = svc.ToggleRecord(ctx)
			case "p":
				err = svc.TogglePlay(ctx)
			case "q":
				return nil
			case "":
				continue
			default:
				term.Break()
				fmt.Fprintln(out, "Unknown key, use r, p or q")
				continue
			}

			// Failures inside the session were already printed by the notifier.
			if errors.Is(err, session.ErrNothingToPlay) || errors.Is(err, session.ErrInvalidTransition) {
				term.Break()
				fmt.Fprintln(out, err)
			} else if err != nil {
				slog.Debug("Button press failed", "error", err)
			}
		}
	}
}
