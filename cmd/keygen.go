package cmd

import (
	"fmt"

	"cronwatch/internal/vault"

	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new master encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}

		fmt.Println(key)
		fmt.Println("\nset this as CRONWATCH_ENCRYPTION_KEY before starting the daemon;")
		fmt.Println("losing it makes every stored connection config unreadable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
