// Package main is the entry point for the tanjun CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tanjun/pkg/config"
	"tanjun/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tanjun",
	Short: "tanjun - a Discord command framework",
	Long: `tanjun runs Discord bots built from components of slash, message and
context-menu commands, with dependency injection, checks, hooks and
rate limiting.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv(config.ConfigPathEnv, configPath)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(bucketsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
