package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func NewUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage registered users",
	}

	var phone, photo string
	var tokens []string

	putCmd := &cobra.Command{
		Use:     "put <id>",
		Short:   "Create or replace a user",
		Args:    cobra.ExactArgs(1),
		Example: `  relayctl user put bob --phone +5585999990000 --token fcm-token`,
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := opts.context()
			defer cancel()

			var out map[string]any
			err = c.Do(ctx, http.MethodPut, "/users/"+url.PathEscape(args[0]), map[string]any{
				"phone":  phone,
				"photo":  photo,
				"tokens": tokens,
			}, &out)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				outputJSON(out)
				return nil
			}
			fmt.Printf("User %s saved (%d tokens)\n", args[0], len(tokens))
			return nil
		},
	}
	putCmd.Flags().StringVar(&phone, "phone", "", "phone number")
	putCmd.Flags().StringVar(&photo, "photo", "", "photo URL")
	putCmd.Flags().StringSliceVar(&tokens, "token", nil, "push token (repeatable)")
	_ = putCmd.MarkFlagRequired("phone")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := opts.context()
			defer cancel()

			var out map[string]any
			if err := c.Do(ctx, http.MethodGet, "/users/"+url.PathEscape(args[0]), nil, &out); err != nil {
				return err
			}
			outputJSON(out)
			return nil
		},
	}

	cmd.AddCommand(putCmd, getCmd)
	return cmd
}
