package cmd

import (
	"fmt"

	"cronwatch/internal/logger"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		c, err := buildCore()
		if err != nil {
			return err
		}

		result := c.sweeper.Sweep()
		fmt.Printf("done: %d runs deleted, %d alerts deleted, %d stale jobs touched\n",
			result.RunsDeleted, result.AlertsDeleted, result.StaleJobsTouched)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
