package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set PATH",
	Short: "Overwrite the value at PATH with a JSON value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := jsonValueFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx := context.Background()
		client, err := newClient(cmd, ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		ref, err := client.Ref(args[0])
		if err != nil {
			return err
		}
		if err := ref.Set(ctx, value); err != nil {
			return fmt.Errorf("failed to set %s: %v", args[0], err)
		}

		fmt.Printf("✓ Set %s\n", args[0])
		return nil
	},
}

func init() {
	setCmd.Flags().String("value", "", "JSON value to write")
	setCmd.Flags().String("file", "", "Read the JSON value from a file instead of --value")
}

// jsonValueFromFlags decodes the --value or --file flag into a generic
// interface{} tree suitable for model.NodeFromWire.
func jsonValueFromFlags(cmd *cobra.Command) (interface{}, error) {
	raw, _ := cmd.Flags().GetString("value")
	file, _ := cmd.Flags().GetString("file")
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read value file: %v", err)
		}
		raw = string(data)
	case raw == "":
		return nil, fmt.Errorf("one of --value or --file is required")
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("failed to parse JSON value: %v", err)
	}
	return value, nil
}
