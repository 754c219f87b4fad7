package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trawl/internal/config"
	"trawl/internal/logging"
	"trawl/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse the output directory and sessions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) == "" {
				bind = cfg.Server.Bind
			}
			dir := cfg.Paths.OutputDir
			if strings.TrimSpace(outputDir) != "" {
				if dir, err = config.ExpandPath(strings.TrimSpace(outputDir)); err != nil {
					return err
				}
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			store, err := ctx.openStore(runCtx, logger)
			if err != nil {
				logging.WarnWithContext(logger, "session listing disabled", "server_store_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "/api/sessions returns an empty list"),
				)
				store = nil
			} else {
				defer store.Close()
			}

			srv, err := server.New(server.Options{Bind: bind, OutputDir: dir, Store: store}, logger)
			if err != nil {
				return err
			}
			if err := srv.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s/ (Ctrl+C to stop)\n", dir, srv.Addr())
			return srv.Serve()
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory to serve (default from config)")
	return cmd
}
