package commands

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/roomhub/internal/config"
	"github.com/Tyrowin/roomhub/internal/hub"
	"github.com/Tyrowin/roomhub/internal/server"
)

// ServeOptions are the serve subcommand flags. Flags that are set override
// the config file and environment.
type ServeOptions struct {
	ConfigPath     string
	Listen         string
	AllowedOrigins []string
	MaxMessageSize int64
	SendBufferSize int
}

// AddPFlags binds the options to fs.
func (o *ServeOptions) AddPFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigPath, "config", "c", o.ConfigPath, "Path to a TOML config file")
	fs.StringVarP(&o.Listen, "listen", "l", o.Listen, "Listen address, e.g. :8080")
	fs.StringSliceVar(&o.AllowedOrigins, "allowed-origins", o.AllowedOrigins, "Browser origins allowed to open a websocket (* for any)")
	fs.Int64Var(&o.MaxMessageSize, "max-message-size", o.MaxMessageSize, "Maximum inbound frame size in bytes")
	fs.IntVar(&o.SendBufferSize, "send-buffer-size", o.SendBufferSize, "Outbound messages buffered per session before drops")
}

// Resolve loads the config file and environment, then applies the flags
// that were set on fs.
func (o *ServeOptions) Resolve(fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	if fs.Changed("listen") {
		cfg.Port = o.Listen
	}
	if fs.Changed("allowed-origins") {
		cfg.AllowedOrigins = o.AllowedOrigins
	}
	if fs.Changed("max-message-size") {
		cfg.MaxMessageSize = o.MaxMessageSize
	}
	if fs.Changed("send-buffer-size") {
		cfg.SendBufferSize = o.SendBufferSize
	}

	return config.Sanitize(cfg), nil
}

func newServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.Resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	opts.AddPFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := logr.FromContextOrDiscard(ctx)

	h := hub.New(hub.WithLogger(logger.WithName("hub")))
	srv := server.New(cfg, h, logger.WithName("server"))

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server error: %w", err)
	}
	return nil
}
