package cli

import (
	"fmt"

	"github.com/dmorgan81/imagine/internal/download"
	"github.com/spf13/cobra"
)

func newDownloadCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download URL DEST",
		Short: "Download an artifact, skipping it if DEST already exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			path, err := download.New(nil).Download(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
