package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshpart",
	Short: "meshpart simulates distributed mesh ownership migration",
	Long: `meshpart runs an in-process cluster of ranks over a scenario file,
executes the requested ownership transfers, and reports the resulting
distributed mesh state.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}
