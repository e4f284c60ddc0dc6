package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tradesync CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tradesync version %s\n", version)
		fmt.Println("A multi-account trading client synchronizer")
		fmt.Println("https://github.com/rustyeddy/tradesync")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
