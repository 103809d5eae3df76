package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/matheus3301/relay/internal/daemon"
	"github.com/matheus3301/relay/internal/lock"
)

func NewStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, cfg, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := opts.context()
			defer cancel()

			resp, err := c.Status(ctx, daemon.ServiceName)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				out, err := protojson.Marshal(resp)
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			fmt.Printf("HTTP:    %s\n", cfg.HTTP.Addr)
			fmt.Printf("Socket:  %s\n", cfg.SocketPath())
			if pid := lock.Owner(cfg.DataDir); pid > 0 {
				fmt.Printf("PID:     %d\n", pid)
			}
			return nil
		},
	}
}
