// Package root holds the cobra root command that the console commands attach to.
package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "wq",
	Short:        "Work queue CLI",
	Long:         `A command line tool to run work queue workers, push jobs and run the task scheduler.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// SetInfo renames the CLI for programs embedding it.
func SetInfo(use, short, long string) {
	rootCmd.Use = use
	rootCmd.Short = short
	rootCmd.Long = long
}

func GetRoot() *cobra.Command {
	return rootCmd
}
