package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func NewContactsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Contact reconciliation",
	}

	matchCmd := &cobra.Command{
		Use:   "match <file>",
		Short: "Print the contacts in file that belong to registered users",
		Long: `Reads a JSON array of contacts (objects or JSON-encoded strings) and
posts it to /registeredContacts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var contacts json.RawMessage
			if err := json.Unmarshal(raw, &contacts); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			c, _, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := opts.context()
			defer cancel()

			var out struct {
				RegisteredContacts []string `json:"registeredContacts"`
			}
			err = c.Do(ctx, http.MethodPost, "/registeredContacts",
				map[string]any{"contacts": contacts}, &out)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				outputJSON(out)
				return nil
			}
			if len(out.RegisteredContacts) == 0 {
				fmt.Println("No registered contacts.")
				return nil
			}
			for _, s := range out.RegisteredContacts {
				fmt.Println(s)
			}
			return nil
		},
	}

	cmd.AddCommand(matchCmd)
	return cmd
}
