package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/ingest/status_rt"
)

func NewFeedCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect realtime status feeds",
	}

	cmd.AddCommand(newFeedProbeCmd(app))

	return cmd
}

func newFeedProbeCmd(app *CtlApp) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Fetch a GTFS-realtime feed and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			message, err := status_rt.FetchFeed(commandContext(cmd), client, args[0], nil)
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}
			app.logger(cmd.ErrOrStderr()).Info("feed fetched",
				"url", args[0],
				"entities", len(message.GetEntity()),
				"timestamp", message.GetHeader().GetTimestamp(),
			)
			return status_rt.DumpFeed(cmd.OutOrStdout(), message)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP timeout")

	return cmd
}
