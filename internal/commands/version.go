package commands

import (
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/roomhub/internal/version"
)

// VersionOptions are the version subcommand flags.
type VersionOptions struct {
	// OutputFormat is empty for text or "json".
	OutputFormat string
}

// Validate checks the options.
func (opts *VersionOptions) Validate() error {
	switch opts.OutputFormat {
	case "", "json":
	default:
		return fmt.Errorf("invalid output format: %s (must be 'json' or empty)", opts.OutputFormat)
	}
	return nil
}

// AddPFlags binds the options to fs.
func (opts *VersionOptions) AddPFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&opts.OutputFormat, "output-format", "f", opts.OutputFormat, "Output format. One of (json).")
}

var versionTemplate = template.Must(template.New("Version").Parse(`Version:   {{ .Version }}
GitCommit: {{ .GitCommit }}
GoVersion: {{ .GoVersion }}
Arch:      {{ .Arch }}
OS:        {{ .OS }}
`))

func newVersionCommand() *cobra.Command {
	opts := &VersionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}

			info := version.GetVersionInfo()
			out := cmd.OutOrStdout()

			if opts.OutputFormat == "json" {
				raw, err := json.Marshal(info)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(raw))
				return err
			}
			return versionTemplate.Execute(out, info)
		},
	}

	opts.AddPFlags(cmd.Flags())

	return cmd
}
