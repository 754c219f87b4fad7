package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trawl/internal/checkpoint"
	"trawl/internal/config"
	"trawl/internal/services"
	"trawl/internal/workflow"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage discovery sessions",
	}
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionResetCommand(ctx))
	return sessionCmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store checkpoint.Store) error {
				summaries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summaries)
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintf(out, "No sessions stored (%s backend)\n", store.Backend())
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{
						s.Session,
						strings.Join(s.Seeds, ", "),
						strconv.Itoa(s.Processed),
						strconv.Itoa(s.Accepted),
						strconv.Itoa(s.Frontier),
						yesNo(s.Complete),
						humanize.Time(s.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Seeds", "Processed", "Accepted", "Pending", "Complete", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
					isDecorated(out),
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var treePath string
	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show a session's parameters and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store checkpoint.Store) error {
				cp, err := loadSession(cmd, store, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				p := cp.Params
				rows := [][]string{
					{"Session", cp.Session},
					{"Backend", store.Backend()},
					{"Seeds", strings.Join(p.Seeds, ", ")},
					{"Tracks per artist", strconv.Itoa(p.TracksPerArtist)},
					{"Similar / depth", fmt.Sprintf("%d / %d", p.SimilarCount, p.MaxDepth)},
					{"Years", optional(p.Years)},
					{"Countries", strings.Join(p.Countries, ", ")},
					{"In top", optional(p.InTop)},
					{"Excluded", strconv.Itoa(len(p.Exclude))},
					{"Processed", strconv.Itoa(cp.ProcessedCount)},
					{"Accepted / rejected", fmt.Sprintf("%d / %d", cp.Counters.ArtistsAccepted, cp.Counters.ArtistsRejected)},
					{"Tracks ok / skipped / failed", fmt.Sprintf("%d / %d / %d", cp.Counters.TracksSucceeded, cp.Counters.TracksSkipped, cp.Counters.TracksFailed)},
					{"Downloaded", humanize.IBytes(uint64(max(cp.Counters.Bytes, 0)))},
					{"Pending", strconv.Itoa(len(cp.Frontier))},
					{"Complete", yesNo(cp.Complete)},
					{"Started", cp.StartedAt.Local().Format(time.DateTime)},
					{"Updated", cp.UpdatedAt.Local().Format(time.DateTime)},
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil, isDecorated(out)))

				if strings.TrimSpace(treePath) == "" {
					return nil
				}
				target, err := config.ExpandPath(strings.TrimSpace(treePath))
				if err != nil {
					return err
				}
				if err := workflow.WriteTree(target, workflow.BuildTree(cp, time.Now())); err != nil {
					return err
				}
				fmt.Fprintf(out, "Discovery tree written to %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&treePath, "tree", "", "Also write the discovery tree as JSON to this file")
	return cmd
}

func newSessionResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session>",
		Short: "Delete a session checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store checkpoint.Store) error {
				if _, err := loadSession(cmd, store, args[0]); err != nil {
					return err
				}
				if err := store.Clear(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset\n", args[0])
				return nil
			})
		},
	}
}

func loadSession(cmd *cobra.Command, store checkpoint.Store, name string) (*checkpoint.Checkpoint, error) {
	cp, err := store.Load(cmd.Context(), name)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("%w: session %q not found", services.ErrConfiguration, name)
	}
	return cp, err
}

func optional[T fmt.Stringer](v *T) string {
	if v == nil {
		return "-"
	}
	return (*v).String()
}
