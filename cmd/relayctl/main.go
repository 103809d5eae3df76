package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/relay/internal/client"
	"github.com/matheus3301/relay/internal/config"
)

type rootOptions struct {
	configPath string
	jsonOut    bool
	timeout    time.Duration
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Resolve(path)
}

func (o *rootOptions) connect() (*client.Client, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := client.New(cfg.SocketPath(), cfg.HTTP.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to relayd: %w", err)
	}
	return c, cfg, nil
}

func (o *rootOptions) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

func NewRelayctlCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "relayctl",
		Short:         "Control and exercise a running relayd",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  relayctl status
  relayctl contacts match contacts.json
  relayctl send --from alice --to bob --text "hi"`,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file path (default: $RELAY_HOME/config.toml)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false,
		"output in JSON format")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second,
		"request timeout")

	cmd.AddCommand(
		NewStatusCommand(opts),
		NewContactsCommand(opts),
		NewSendCommand(opts),
		NewUserCommand(opts),
	)

	return cmd
}

func main() {
	cmd := NewRelayctlCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
