package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "bistro",
		Short:   "Bistro: restaurant chat assistant with answer caching and canned fallbacks",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newUsageCmd(),
		newBudgetCmd(),
		newTokenCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
