package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Print the id of the pipeline that collect would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			if a.cfg.Kandinsky.PipelineID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Kandinsky.PipelineID)
				return nil
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			id, err := client.DiscoverPipeline(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
