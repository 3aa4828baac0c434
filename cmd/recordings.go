package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundrecorder/internal/audio"
	"github.com/audiolibrelab/soundrecorder/internal/timer"
)

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List saved recordings",
	Long:  `List the WAV files in the output directory with their duration, newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Output.Directory
		rows, err := scanRecordings(dir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("No recordings yet in %s\n", dir)
				return nil
			}
			return fmt.Errorf("failed to read recordings directory: %w", err)
		}

		fmt.Printf("Recordings in %s (%d)\n\n", dir, len(rows))
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDURATION\tFORMAT\tMODIFIED")
		for _, r := range rows {
			duration, format := "?", "unreadable"
			if r.valid {
				duration = timer.Format(r.info.Duration)
				format = r.info.Format.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.name, duration, format, r.modTime.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

type recordingRow struct {
	name    string
	path    string
	modTime time.Time
	info    audio.WAVInfo
	valid   bool
}

// scanRecordings lists the files in dir carrying the configured suffix,
// newest first.
func scanRecordings(dir string) ([]recordingRow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var rows []recordingRow
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), cfg.Suffix()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		r := recordingRow{
			name:    e.Name(),
			path:    filepath.Join(dir, e.Name()),
			modTime: fi.ModTime(),
		}
		if wi, err := audio.ProbeWAV(r.path); err == nil {
			r.info = wi
			r.valid = true
		}
		rows = append(rows, r)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].modTime.After(rows[j].modTime) })
	return rows, nil
}
