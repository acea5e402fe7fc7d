// Package commands builds the roomhub command line.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/roomhub/internal/version"
)

// NewGlobalOptions creates the default GlobalOptions.
func NewGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Verbosity: 0,
	}
}

// GlobalOptions are shared by every subcommand.
type GlobalOptions struct {
	// Log verbosity: 0 info, 1 debug, 2 trace.
	Verbosity uint32
	// Debug raises verbosity to at least 1 and logs callers.
	Debug bool
}

// Validate checks the options.
func (o *GlobalOptions) Validate() error {
	if o.Verbosity > 2 {
		return fmt.Errorf("invalid log verbosity: %d (expected: 0, 1 or 2)", o.Verbosity)
	}
	return nil
}

// AddPFlags binds the options to fs.
func (o *GlobalOptions) AddPFlags(fs *pflag.FlagSet) {
	fs.Uint32VarP(&o.Verbosity, "verbose", "v", o.Verbosity, "Number for the log level verbosity (0, 1, or 2)")
	fs.BoolVar(&o.Debug, "debug", false, "Run in debug mode")
}

// NewLogger builds the logr logger backed by logrus for the options.
func (o *GlobalOptions) NewLogger(w io.Writer) logr.Logger {
	logrusLogger := logrus.New()
	logrusLogger.SetOutput(w)
	logrusLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	verbosity := o.Verbosity
	if o.Debug && verbosity < 1 {
		verbosity = 1
	}
	switch verbosity {
	case 0:
		logrusLogger.Level = logrus.InfoLevel
	case 1:
		logrusLogger.Level = logrus.DebugLevel
	default:
		logrusLogger.Level = logrus.TraceLevel
	}
	if o.Debug {
		logrusLogger.SetReportCaller(true)
	}

	return logrusr.New(logrusLogger)
}

// NewCommand creates the root command.
func NewCommand(name string) *cobra.Command {
	globalOpts := NewGlobalOptions()

	cmd := &cobra.Command{
		Use:           name,
		Short:         "Websocket chat server that routes messages between rooms.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := globalOpts.Validate(); err != nil {
				return err
			}

			logger := globalOpts.NewLogger(os.Stderr)
			cmd.SetContext(logr.NewContext(cmd.Context(), logger))
			return nil
		},
	}

	globalOpts.AddPFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(),
		newClientCommand(),
		newVersionCommand(),
	)

	return cmd
}
