package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect <uri>",
	Short: "Handshake and HELLO, then print the negotiated version and server agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, password := credentials(cmd)
		h, conn, err := handshake(context.Background(), args[0], user, password)
		if err != nil {
			return err
		}
		defer conn.Close()

		fmt.Printf("Connected to %s\n", conn.Address)
		fmt.Printf("  Bolt version: %s\n", conn.Version.String())
		fmt.Printf("  Server agent: %s\n", h.Shared().ServerAgent)
		fmt.Printf("  Connection ID: %s\n", h.Shared().ConnectionID)
		return nil
	},
}
