package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <scene-id>...",
		Short: "Pull scenes, markers and tags from Stash into the local cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := ctx.cliLogger()
			st, err := ctx.openStore(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			svc, err := ctx.newService(logger, st)
			if err != nil {
				return err
			}

			results, err := svc.SyncScenes(cmd.Context(), args)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(results))
			failed := 0
			for _, r := range results {
				status := "ok"
				if r.Error != "" {
					status = r.Error
					failed++
				}
				rows = append(rows, []string{r.SceneID, strconv.Itoa(r.Markers), status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Scene", "Markers", "Status"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))

			if failed > 0 {
				return fmt.Errorf("%d of %d scenes failed to sync", failed, len(results))
			}
			return nil
		},
	}
}
