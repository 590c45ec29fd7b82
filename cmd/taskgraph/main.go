package main

import (
	"fmt"
	"os"

	"github.com/diegoavarela/task-list-sub000/internal/cli"
	"github.com/diegoavarela/task-list-sub000/internal/config"
	"github.com/diegoavarela/task-list-sub000/internal/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "taskgraph",
	Short:         "Tasks with dependencies, recurrence and manual ordering",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)
	cli.SetupCLI(rootCmd, cfg)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
