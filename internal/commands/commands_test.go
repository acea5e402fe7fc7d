package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomhub/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand("roomhub")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "-f", "json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionText(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:   "+version.Version)
}

func TestVersionRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "version", "-f", "yaml")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestRejectsInvalidVerbosity(t *testing.T) {
	_, err := execute(t, "-v", "3", "version")
	assert.ErrorContains(t, err, "invalid log verbosity")
}

func TestServeOptionsFlagsOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", ":7000")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")

	opts := &ServeOptions{}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	opts.AddPFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen", ":9999", "--allowed-origins", "*,http://a.test"}))

	cfg, err := opts.Resolve(fs)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Port, "flag beats env")
	assert.Equal(t, []string{"*", "http://a.test"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize, "env applies when the flag is unset")
}

func TestClientOptions(t *testing.T) {
	opts := NewClientOptions()
	assert.NoError(t, opts.Validate())
	assert.Equal(t, "ws://127.0.0.1:8080/ws/", opts.URL())

	opts.Host = "::1"
	assert.Equal(t, "ws://[::1]:8080/ws/", opts.URL())

	opts.Port = 70000
	assert.Error(t, opts.Validate())
}
