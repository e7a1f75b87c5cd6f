// Command rtdbctl is a debugging CLI for the Realtime Database sync
// engine: connect to a namespace (or the emulator), read and write paths,
// and watch a path's value as it changes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/firebase/rtdb-go/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rtdbctl",
	Short:   "rtdbctl inspects and drives a Realtime Database instance",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("rtdbctl version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "YAML config file (namespace, credentialFile, requestTimeout); flags below override it")
	rootCmd.PersistentFlags().String("namespace", "", "Database namespace (the <namespace> in https://<namespace>.firebaseio.com)")
	rootCmd.PersistentFlags().String("credential-file", "", "Path to a file containing a bearer token; omit to use the emulator env var")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Request timeout applied to the command's RPC (0 uses the client default)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(watchCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}
