package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meridian",
		Short: "Macro-metric and tech-feed dashboard updater",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(updateCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(healthCmd())

	return root
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Fetch all sources and regenerate the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(true, true)
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch all sources without regenerating the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(true, false)
		},
	}
}

func renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Regenerate the dashboard from existing data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(false, true)
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connector health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth()
		},
	}
}
