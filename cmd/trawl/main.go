package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trawl/internal/services"
)

func main() {
	loadDotEnv(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}

// loadDotEnv exports variables from path without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s: %v\n", path, err)
	}
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return services.ExitInterrupted
	}
	return services.ExitCode(err)
}
