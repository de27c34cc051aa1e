package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tanjun/pkg/config"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Print the configured limiter buckets",
	Long: `Print the cooldown and concurrency buckets from the resolved
configuration, including the implicit defaults.`,
	Run: runBuckets,
}

func runBuckets(cmd *cobra.Command, args []string) {
	loader := config.NewLoader()
	cfg, err := loader.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if path := loader.ConfigFileUsed(); path != "" {
		fmt.Printf("Config: %s\n", path)
	}
	fmt.Printf("Backend: %s\n\n", cfg.Limiter.Backend)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tBUCKET\tRESOURCE\tLIMIT\tWINDOW")
	for _, name := range sortedKeys(cfg.Limiter.Cooldowns) {
		b := cfg.Limiter.Cooldowns[name]
		fmt.Fprintf(w, "cooldown\t%s\t%s\t%d\t%s\n", name, b.Resource, b.Limit, b.Window())
	}
	for _, name := range sortedKeys(cfg.Limiter.Concurrency) {
		b := cfg.Limiter.Concurrency[name]
		fmt.Fprintf(w, "concurrency\t%s\t%s\t%d\t-\n", name, b.Resource, b.Limit)
	}
	w.Flush()
}

func sortedKeys(m map[string]config.BucketConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
