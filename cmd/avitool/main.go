// Command avitool inspects and builds AVI files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"avikit/pkg/avi"
	"avikit/pkg/catalog"
	"avikit/pkg/log"
)

var (
	verbose     bool
	catalogPath string
)

func newLogger() *log.Logger {
	minLevel := log.LevelWarning
	if verbose {
		minLevel = log.LevelDebug
	}
	return log.NewLogger(os.Stderr, minLevel)
}

var rootCmd = &cobra.Command{
	Use:           "avitool",
	Short:         "AVI container toolbox.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Dump the chunk tree and every header field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := avi.OpenFile(args[0], log.NewLogger(cmd.OutOrStdout(), log.LevelInfo))
		if err != nil {
			return err
		}
		defer r.Close()
		return r.DumpHeaders()
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Print a structured report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := probeFile(args[0])
		if err != nil {
			return err
		}
		printReport(cmd, args[0], report)

		if catalogPath != "" {
			c, err := catalog.Open(catalogPath)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Put(args[0], report)
		}
		return nil
	},
}

var muxCmd = &cobra.Command{
	Use:   "mux <job.yaml>",
	Short: "Build an AVI file from a job description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := loadJob(args[0])
		if err != nil {
			return err
		}
		return job.run(newLogger())
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Probe every AVI file under a directory into the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if catalogPath == "" {
			return fmt.Errorf("scan requires --catalog")
		}
		c, err := catalog.Open(catalogPath)
		if err != nil {
			return err
		}
		defer c.Close()
		return scanDir(cmd, c, args[0], newLogger())
	},
}

func probeFile(path string) (*avi.Report, error) {
	r, err := avi.OpenFile(path, newLogger())
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Probe()
}

func printReport(cmd *cobra.Command, path string, report *avi.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", path)
	fmt.Fprintf(out, "  riff size    : %d\n", report.RIFFSize)
	fmt.Fprintf(out, "  streams      : %d\n", report.Main.Streams)
	fmt.Fprintf(out, "  total frames : %d\n", report.Main.TotalFrames)
	fmt.Fprintf(out, "  frame size   : %dx%d\n", report.Main.Width, report.Main.Height)
	fmt.Fprintf(out, "  video chunks : %d\n", report.VideoChunks)
	fmt.Fprintf(out, "  audio chunks : %d\n", report.AudioChunks)
	fmt.Fprintf(out, "  index entries: %d\n", report.IndexEntries)
	for i, s := range report.Streams {
		fmt.Fprintf(out, "  stream %d     : %q %q rate:%d/%d length:%d\n",
			i, s.Type, s.Handler, s.Rate, s.Scale, s.Length)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "",
		"probe catalog database path")
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(muxCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "avitool: %v\n", err)
		os.Exit(1)
	}
}
