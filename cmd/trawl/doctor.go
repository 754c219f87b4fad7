package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trawl/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, Redis, and catalog reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				switch {
				case r.Skipped:
					status = "skipped"
				case !r.Passed:
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil, isDecorated(out)))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
