package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <uuid>",
	Short: "Check whether a producer UUID is registered",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ok, err := c.IsRegistered(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s is not registered", args[0])
	}
	fmt.Printf("%s is registered\n", args[0])
	return nil
}
