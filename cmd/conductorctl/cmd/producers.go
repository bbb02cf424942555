package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/conductor-telemetry/conductor/pkg/schema"
)

// producersCmd represents the producers command
var producersCmd = &cobra.Command{
	Use:   "producers",
	Short: "Manage registered producers",
	Long:  `Commands for listing and registering producers on a conductor server.`,
}

// producersListCmd represents the producers list command
var producersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered producers",
	RunE:  runProducersList,
}

// producersRegisterCmd represents the producers register command
var producersRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a producer",
	Long: `Register a producer with the given name and schema. Columns are passed
as repeated --column name:type flags, where type is one of Int, Float,
Double, Time, String, Binary or Bool.`,
	Args: cobra.ExactArgs(1),
	RunE: runProducersRegister,
}

var (
	registerColumns  []string
	registerCustomID string
)

func init() {
	rootCmd.AddCommand(producersCmd)
	producersCmd.AddCommand(producersListCmd)
	producersCmd.AddCommand(producersRegisterCmd)

	producersRegisterCmd.Flags().StringArrayVar(&registerColumns, "column", nil, "schema column as name:type (repeatable)")
	producersRegisterCmd.Flags().StringVar(&registerCustomID, "id", "", "use a custom producer ID instead of a generated UUID")
}

func runProducersList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	producers, err := c.ListProducers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list producers: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(producers, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(producers) == 0 {
		fmt.Println("No producers registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "UUID", "Columns", "Schema")

	for _, p := range producers {
		cols := make([]string, 0, len(p.Schema))
		for name, t := range p.Schema {
			cols = append(cols, fmt.Sprintf("%s:%s", name, t))
		}
		sort.Strings(cols)
		table.Append(p.Name, p.UUID, fmt.Sprintf("%d", len(p.Schema)), strings.Join(cols, ", "))
	}

	table.Render()
	fmt.Printf("\nTotal producers: %d\n", len(producers))
	return nil
}

// parseColumns turns repeated name:type flags into a schema.
func parseColumns(specs []string) (schema.Schema, error) {
	s := make(schema.Schema, len(specs))
	for _, spec := range specs {
		name, typeName, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid column %q, expected name:type", spec)
		}
		t, err := schema.ParseDataType(typeName)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		s[name] = t
	}
	return s, nil
}

func runProducersRegister(cmd *cobra.Command, args []string) error {
	s, err := parseColumns(registerColumns)
	if err != nil {
		return err
	}
	if len(s) == 0 {
		return fmt.Errorf("at least one --column is required")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	var id string
	if registerCustomID != "" {
		id, err = c.RegisterWithID(context.Background(), args[0], registerCustomID, s)
	} else {
		id, err = c.Register(context.Background(), args[0], s)
	}
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if IsJSONOutput() {
		output, _ := json.Marshal(map[string]string{"name": args[0], "uuid": id})
		fmt.Println(string(output))
		return nil
	}
	fmt.Printf("Registered %s with UUID %s\n", args[0], id)
	return nil
}
