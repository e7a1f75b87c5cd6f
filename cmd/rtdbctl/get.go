package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Read the current value at PATH, folding in any pending writes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		node, err := ref.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to get %s: %v", args[0], err)
		}

		out, err := json.MarshalIndent(node.Wire(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode value: %v", err)
		}
		fmt.Println(string(out))
		return nil
	},
}
