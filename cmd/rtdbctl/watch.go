package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firebase/rtdb-go/pkg/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch PATH",
	Short: "Print PATH's value every time it changes, until interrupted",
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

		listener := ref.OnValue(func(node model.Node) {
			printValue(node.Wire())
		})
		defer listener.Remove()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		fmt.Printf("watching %s, press Ctrl+C to stop\n", args[0])
		<-sigCh
		return nil
	},
}

func printValue(v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode value: %v\n", err)
		return
	}
	fmt.Printf("[%s] %s\n", time.Now().Format(time.RFC3339), out)
}
