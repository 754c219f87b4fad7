package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trawl/internal/services"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logFormatFlag string
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &logFormatFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "trawl",
		Short:         "Discover similar artists and download their tracks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: console, json, or auto")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", services.ErrValidation, err)
	})

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newSessionCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
