// Cyberq reads and controls BBQ Guru CyberQ WiFi and Cloud controllers.
//
// It polls the controller's web pages, shows probe temperatures and
// settings, writes setpoints, and can run as a service exposing the
// controller over HTTP, Prometheus metrics, a websocket and MQTT.
//
// Usage:
//
//	cyberq [command] [flags]
//
// See 'cyberq --help' for available commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/cyberq/internal/logging"
	"github.com/muurk/cyberq/internal/version"
)

// errReported marks failures already rendered as a result box
var errReported = errors.New("reported")

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Persistent flags
var (
	deviceTarget string
	devicePort   int
	outputFormat string
	logLevel     string
	configFile   string
)

var rootCmd = &cobra.Command{
	Use:   "cyberq",
	Short: "CyberQ BBQ Controller Utility",
	Long: `A command-line client for BBQ Guru CyberQ WiFi and Cloud controllers.

Reads probe temperatures and settings, writes setpoints and probe names,
and runs a service that mirrors the controller to HTTP, Prometheus,
websocket and MQTT consumers.

Controllers are addressed with --device, which accepts an IP address,
a hostname, or the serial number or nickname of a controller remembered
from a previous scan.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "detailed", "compact", "json":
		default:
			return fmt.Errorf("unknown --format %q (use detailed, compact or json)", outputFormat)
		}
		if logLevel == "" {
			// CYBERQ_LOG_LEVEL decides; unset means silent.
			return logging.InitializeFromEnv()
		}
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&deviceTarget, "device", "", "Controller IP, hostname, serial number or nickname")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 0, "Controller HTTP port (default from the device registry, usually 80)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Service settings file for 'serve' (YAML)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == "json" {
			data, err := json.MarshalIndent(version.Get(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		info := version.Get()
		fmt.Printf("cyberq %s (commit: %s, %s, %s)\n", info.Version, info.Commit, info.GoVersion, info.Platform)
		return nil
	},
}
