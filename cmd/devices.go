package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundrecorder/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"sources"},
	Short:   "List available capture devices",
	Long: `List the capture devices of the configured backend. With "auto" the
first installed backend is used (PipeWire, then PulseAudio, then ALSA).

--check validates the configured capture_device against the PipeWire graph.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")

		backend := audio.Backend(cfg.Audio.CaptureBackend)
		if backend == audio.BackendAuto {
			detected, err := audio.DetectBackend()
			if err != nil {
				return err
			}
			backend = detected
		}

		devices, err := audio.ListDevices(backend)
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		fmt.Printf("Capture devices (%s, %s)\n", backend, runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
			if d.Description != "" && d.Description != d.Name {
				fmt.Printf("     %s\n", d.Description)
			}
		}
		if len(devices) == 0 {
			fmt.Println("  none found")
		}

		fmt.Printf("\nConfigure with audio.capture_backend: %s and audio.capture_device: <name>\n", backend)

		if check {
			return checkCaptureDevice(backend)
		}
		return nil
	},
}

func checkCaptureDevice(backend audio.Backend) error {
	device := cfg.Audio.CaptureDevice
	if device == "" {
		fmt.Println("\nNo capture_device configured, the default source is used")
		return nil
	}
	if backend != audio.BackendPipeWire {
		return fmt.Errorf("--check needs the pipewire backend, got %s", backend)
	}
	if err := audio.NewPipeWire().ValidateNode(device); err != nil {
		return err
	}
	fmt.Printf("\n%s is available\n", device)
	return nil
}

func init() {
	devicesCmd.Flags().Bool("check", false, "validate the configured capture_device")
}
