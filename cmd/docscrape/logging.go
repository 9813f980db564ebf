package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/docscrape/internal/log"
)

// boolFlag returns the value of a bool flag, or false when the command
// does not have it (e.g. a subcommand run without its root).
func boolFlag(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	v, err := cmd.Flags().GetBool(name)
	return err == nil && v
}

// stringFlag is boolFlag for string flags.
func stringFlag(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// setupLogger creates the sanitizing logger selected by the global flags.
// Logs go to stderr and, with --log-file, to a rotating file as well.
// The returned function closes the log file.
func setupLogger(cmd *cobra.Command) (*slog.Logger, func() error) {
	var w io.Writer = cmd.ErrOrStderr()
	closeFn := func() error { return nil }

	if path := stringFlag(cmd, "log-file"); path != "" {
		rotating := log.NewRotatingWriter(path, log.RotationOptions{})
		w = io.MultiWriter(w, rotating)
		closeFn = rotating.Close
	}

	verbose := boolFlag(cmd, "verbose")
	if boolFlag(cmd, "json-logs") {
		return log.NewSecureJSONLogger(w, verbose), closeFn
	}
	return log.NewSecureLogger(w, verbose), closeFn
}
