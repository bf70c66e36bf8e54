package cmd

import (
	"fmt"

	"cronwatch/internal/logger"

	"github.com/spf13/cobra"
)

var discoverUser string

var discoverCmd = &cobra.Command{
	Use:   "discover [connection-id]",
	Short: "Discover jobs for a connection and reconcile the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		c, err := buildCore()
		if err != nil {
			return err
		}

		result, err := c.reconciler.Discover(cmd.Context(), args[0], discoverUser)
		if err != nil {
			return err
		}

		fmt.Printf("done: %d added, %d updated, %d errors\n", result.Added, result.Updated, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Println("  " + e)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverUser, "user", "", "owning user id")
	_ = discoverCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(discoverCmd)
}
