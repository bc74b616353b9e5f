package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// cli holds state shared by all commands
type cli struct {
	fs         afero.Fs
	configPath string
	logLevel   string
	noColor    bool
	logger     *slog.Logger
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	c := &cli{fs: fs}

	rootCmd := &cobra.Command{
		Use:   "safe-event",
		Short: "Generate typed Go events from event schemas",
		Long: `safe-event reads event schema documents and generates Go constants,
payload structs and validating decoders for the event bus.

Run 'safe-event init' to create a config file, then 'safe-event generate'.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.noColor {
				color.NoColor = true
			}
			level, err := parseLevel(c.logLevel)
			if err != nil {
				return err
			}
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, c, false)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "safe-event.config.json", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "WARN", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	rootCmd.SetVersionTemplate(fmt.Sprintf("safe-event %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(newGenerateCmd(c))
	rootCmd.AddCommand(newInitCmd(c))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.FgGreen).Sprint("✓"), fmt.Sprintf(format, args...))
}

func notice(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.FgYellow).Sprint("•"), fmt.Sprintf(format, args...))
}
