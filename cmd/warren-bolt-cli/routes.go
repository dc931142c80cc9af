package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
)

var routesCmd = &cobra.Command{
	Use:   "routes <uri>",
	Short: "Force a ROUTE call and print the returned routing table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _ := cmd.Flags().GetString("database")
		user, password := credentials(cmd)

		h, conn, err := handshake(context.Background(), args[0], user, password)
		if err != nil {
			return err
		}
		defer conn.Close()

		var meta map[string]any
		var routeErr error
		cb := bolt.Callbacks{
			OnSuccess: func(m map[string]any) error { meta = m; return nil },
			OnFailure: func(se *neo4jerr.ServerError) error { routeErr = neo4jerr.FromServerError(se); return nil },
		}
		if err := h.Route(bolt.RouteParams{Database: database}, cb); err != nil {
			return err
		}
		if err := h.ReadResponse(); err != nil {
			return err
		}
		if routeErr != nil {
			return routeErr
		}

		rt, _ := meta["rt"].(map[string]any)
		fmt.Printf("Routing table for database %q (ttl=%v):\n", database, rt["ttl"])
		servers, _ := rt["servers"].([]any)
		for _, s := range servers {
			entry, ok := s.(map[string]any)
			if !ok {
				continue
			}
			fmt.Printf("  %-8v %v\n", entry["role"], entry["addresses"])
		}
		return nil
	},
}

func init() {
	routesCmd.Flags().String("database", "", "Database name to resolve routing for")
}
