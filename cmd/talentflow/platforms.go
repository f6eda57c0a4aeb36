package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List all configured platforms",
	Long:  "Reads the config and prints a table of all configured discovery platforms.",
	RunE:  runPlatforms,
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(cfg.Platforms))
	for name := range cfg.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-15s %-10s %s\n", "Platform", "Status", "Feed")
	fmt.Println(strings.Repeat("─", 70))

	enabled, disabled := 0, 0
	for _, name := range names {
		p := cfg.Platforms[name]
		status := "enabled"
		if !p.Enabled {
			status = "disabled"
			disabled++
		} else {
			enabled++
		}
		fmt.Printf("%-15s %-10s %s\n", name, status, p.FeedURL)
	}

	fmt.Printf("\nTotal: %d platforms (%d enabled, %d disabled)\n", len(names), enabled, disabled)
	return nil
}
