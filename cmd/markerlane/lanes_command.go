package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

func newLanesCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var query string

	cmd := &cobra.Command{
		Use:   "lanes <scene-id>",
		Short: "Show the swimlane layout of a cached scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := timeline.Filter{Query: query}
			for _, raw := range statuses {
				st, ok := timeline.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter.Statuses = append(filter.Statuses, st)
			}

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

			tl, err := svc.Timeline(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderLanes(tl))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show markers with these statuses")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show markers whose lane, tag or title contains this text")
	return cmd
}

func renderLanes(tl *review.SceneTimeline) string {
	l := tl.Layout
	rows := make([][]string, 0, len(l.Placements))
	for _, lane := range l.Lanes {
		group := ""
		if lane.Group != nil {
			group = lane.Group.Name
		}
		for _, m := range lane.Markers {
			p := l.Placements[m.ID]
			rows = append(rows, []string{
				lane.Name,
				group,
				strconv.Itoa(p.TrackIndex),
				m.ID,
				formatInterval(m),
				p.Status.String(),
			})
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %d lanes, %d tracks, %d shot boundaries\n",
		tl.Scene.Title, tl.Scene.ID, len(l.Lanes), l.TrackCount(), len(l.ShotBoundaries))
	b.WriteString(renderTable(
		[]string{"Lane", "Group", "Track", "Marker", "Interval", "Status"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	))
	return b.String()
}

func formatInterval(m timeline.Marker) string {
	if m.End == nil {
		return fmt.Sprintf("%.2f", m.Start)
	}
	return fmt.Sprintf("%.2f-%.2f", m.Start, *m.End)
}
