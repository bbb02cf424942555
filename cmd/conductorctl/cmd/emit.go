package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// emitCmd represents the emit command
var emitCmd = &cobra.Command{
	Use:   "emit <uuid> <json-data>",
	Short: "Emit a data packet as a producer",
	Long: `Send one data packet for a registered producer. The data is a JSON
object whose keys match the registered schema, for example:

  conductorctl emit 5a9f... '{"temperature": 21.5, "count": 3}'`,
	Args: cobra.ExactArgs(2),
	RunE: runEmit,
}

var emitTimestamp string

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.Flags().StringVar(&emitTimestamp, "at", "", "row timestamp in RFC 3339 (default: server receive time)")
}

func runEmit(cmd *cobra.Command, args []string) error {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
		return fmt.Errorf("invalid data payload: %w", err)
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if emitTimestamp != "" {
		ts, err := time.Parse(time.RFC3339, emitTimestamp)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp: %w", err)
		}
		err = c.EmitAt(ctx, args[0], ts, data)
		if err != nil {
			return fmt.Errorf("emit failed: %w", err)
		}
	} else if err := c.Emit(ctx, args[0], data); err != nil {
		return fmt.Errorf("emit failed: %w", err)
	}

	fmt.Println("OK")
	return nil
}
