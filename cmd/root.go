// Package cmd implements the inkwell CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🖋️"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: logo + " inkwell — AI Writing Assistant",
	Long:  logo + " inkwell — a streaming AI writing assistant with web search, image generation and resume analysis",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}
