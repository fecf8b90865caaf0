package cli

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/dmorgan81/imagine/internal/midjourney"
	"github.com/spf13/cobra"
)

func newPollCmd(root *rootOptions) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "poll ID...",
		Short: "Show the status of midjourney tasks in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if server != "" {
				cfg.Midjourney.ServerURL = server
			}

			client := midjourney.New(midjourney.Config{
				BaseURL:   cfg.Midjourney.ServerURL,
				RateLimit: cfg.Midjourney.RateLimit,
			}, http.DefaultClient)
			statuses, err := client.PollMany(ctx, args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tSTATE\tDETAIL")
			for _, id := range args {
				status := statuses[id]
				detail := status.ArtifactURL
				if status.State == midjourney.Failed {
					detail = status.Reason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, status.State, detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "midjourney-proxy server url")
	return cmd
}
