// Command fwimg is the firmware-image console: a one-shot CLI built on
// cobra for scripting, and an interactive REPL (no subcommand) for manual
// inspection and repair sessions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barnettlynn/fwimage/internal/replconfig"
)

var (
	verbose   bool
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fwimg",
	Short: "Introspect, validate, and repack handheld-console firmware images",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(
		infoCmd,
		verifyCmd,
		fixCmd,
		compactCmd,
		md5Cmd,
		cleanCmd,
		restoreCmd,
		importCmd,
		exportCmd,
	)
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
}

// colorCapable reports whether diagnostic output should carry ANSI color,
// per whether stdout is an interactive terminal whose size can be queried.
func colorCapable() bool {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return false
	}
	_, _, err := term.GetSize(fd)
	return err == nil
}

// loadDefaultConfig loads the REPL preferences file if one is configured
// and present; callers proceed with zero-value defaults on any failure to
// find it, since every field is optional.
func loadDefaultConfig(path string) replconfig.Config {
	if path == "" {
		return replconfig.Config{}
	}
	cfg, err := replconfig.Load(path)
	if err != nil {
		slog.Debug("no REPL preferences loaded", "path", path, "err", err)
		return replconfig.Config{}
	}
	return *cfg
}
