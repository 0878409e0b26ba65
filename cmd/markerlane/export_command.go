package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markerlane/markerlane-agent/internal/export"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var req export.Request

	cmd := &cobra.Command{
		Use:   "export <scene-id>",
		Short: "Write the approved markers of a cached scene as an EDL",
		Args:  cobra.ExactArgs(1),
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

			tl, err := svc.Timeline(cmd.Context(), args[0], timeline.Filter{})
			if err != nil {
				return err
			}

			clips, skipped := export.ClipsFromLayout(tl.Layout, tl.Scene.Path, req.Lanes)
			resp, err := export.WriteEDL(req, clips, skipped, tl.Scene.FrameRate, tl.Scene.Title)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d clips to %s\n", resp.ClipCount, resp.OutputPath)
			if len(resp.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d markers without an end time\n", len(resp.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.OutputDir, "out", "o", "", "Existing directory to write the EDL into")
	cmd.Flags().StringVarP(&req.ProjectName, "name", "n", "", "EDL title and file name (default: scene title)")
	cmd.Flags().Float64Var(&req.FrameRate, "frame-rate", 0, "Override the scene frame rate")
	cmd.Flags().StringSliceVar(&req.Lanes, "lane", nil, "Only export these lanes")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
