package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update PATH",
	Short: "Merge a JSON object of children into PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := jsonValueFromFlags(cmd)
		if err != nil {
			return err
		}
		children, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("update requires a JSON object, got %T", value)
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
		if err := ref.Update(ctx, children); err != nil {
			return fmt.Errorf("failed to update %s: %v", args[0], err)
		}

		fmt.Printf("✓ Updated %s (%d keys)\n", args[0], len(children))
		return nil
	},
}

func init() {
	updateCmd.Flags().String("value", "", "JSON object of children to merge")
	updateCmd.Flags().String("file", "", "Read the JSON object from a file instead of --value")
}
