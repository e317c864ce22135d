package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "cryptofolio",
	Short: "Crypto portfolio automation engine",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
}
