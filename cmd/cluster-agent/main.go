package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cuemby/clusteragent/pkg/config"
	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cluster-agent",
	Short: "Node-local recovery agent for Gluu clusters",
	Long: `cluster-agent brings the containers, overlay network and DNS records
of this host back to the desired state recorded by the cluster's
provisioning service.

It is meant to be run repeatedly, at boot and on a timer. Every run
is a single recovery pass.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

// logFile is the --logfile destination, closed after the command runs
var logFile io.WriteCloser

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"cluster-agent version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to the agent configuration file (YAML)")
	rootCmd.PersistentFlags().String("logfile", "", "Append logs to this file instead of stdout")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(updateImagesCmd)
	rootCmd.AddCommand(storeCmd)
}

func initLogging(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("logfile")
	level, _ := cmd.Flags().GetString("log-level")
	jsonOutput, _ := cmd.Flags().GetBool("log-json")

	var output io.Writer = os.Stdout
	if path != "" {
		f, err := log.OpenFile(path)
		if err != nil {
			return err
		}
		logFile = f
		output = f
	}

	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOutput,
		Output:     output,
	})
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
