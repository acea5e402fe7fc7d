package commands

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/roomhub/internal/console"
)

// ClientOptions are the client subcommand flags.
type ClientOptions struct {
	Host string
	Port int
}

// NewClientOptions creates the default ClientOptions.
func NewClientOptions() ClientOptions {
	return ClientOptions{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

// AddPFlags binds the options to fs.
func (o *ClientOptions) AddPFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Host, "host", o.Host, "Server host name")
	fs.IntVar(&o.Port, "port", o.Port, "Server port number")
}

// Validate checks the options.
func (o *ClientOptions) Validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port: %d", o.Port)
	}
	return nil
}

// URL is the websocket endpoint the client connects to.
func (o *ClientOptions) URL() string {
	return "ws://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port)) + "/ws/"
}

func newClientCommand() *cobra.Command {
	opts := NewClientOptions()

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Console client: send stdin lines, print received text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}
			return console.Run(cmd.Context(), console.Options{
				URL: opts.URL(),
				In:  os.Stdin,
				Out: cmd.OutOrStdout(),
			})
		},
	}

	opts.AddPFlags(cmd.Flags())

	return cmd
}
