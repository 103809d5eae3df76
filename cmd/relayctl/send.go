package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewSendCommand(opts *rootOptions) *cobra.Command {
	var from, to, text, id string

	cmd := &cobra.Command{
		Use:     "send",
		Short:   "Write a text message to the sender's chat",
		Args:    cobra.NoArgs,
		Example: `  relayctl send --from alice --to bob --text "hi"`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if id == "" {
				id = uuid.NewString()
			}

			c, _, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := opts.context()
			defer cancel()

			path := fmt.Sprintf("/users/%s/chats/%s/messages", url.PathEscape(from), url.PathEscape(to))
			var out map[string]any
			err = c.Do(ctx, http.MethodPost, path, map[string]any{
				"id":   id,
				"type": "text",
				"text": text,
			}, &out)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				outputJSON(out)
				return nil
			}
			fmt.Printf("Message %s sent to %s (status %v)\n", out["id"], to, out["status"])
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "sender user id")
	cmd.Flags().StringVar(&to, "to", "", "receiver user id")
	cmd.Flags().StringVar(&text, "text", "", "message body")
	cmd.Flags().StringVar(&id, "id", "", "message id (default: random UUID)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}
