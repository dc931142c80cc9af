package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/warren-bolt/pkg/auth"
	"github.com/cuemby/warren-bolt/pkg/driver"
	"github.com/cuemby/warren-bolt/pkg/values"
)

var runCmd = &cobra.Command{
	Use:   "run <uri> <cypher>",
	Short: "Open a session, run an auto-commit query, print records and summary",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, cypher := args[0], args[1]
		user, password := credentials(cmd)
		database, _ := cmd.Flags().GetString("database")

		d, err := driver.New(uri, driver.Config{
			Auth: auth.Static{Token: values.AuthToken{
				"scheme":      "basic",
				"principal":   user,
				"credentials": password,
			}},
		})
		if err != nil {
			return fmt.Errorf("building driver: %w", err)
		}
		defer d.Close()

		ctx := context.Background()
		opts := []driver.QueryOption{}
		if database != "" {
			opts = append(opts, driver.WithDatabase(database))
		}
		result, err := d.ExecuteQuery(ctx, cypher, nil, opts...)
		if err != nil {
			return fmt.Errorf("running query: %w", err)
		}

		fmt.Printf("Keys: %v\n", result.Keys)
		for _, rec := range result.Records {
			fmt.Printf("  %v\n", rec.Values)
		}
		fmt.Printf("\nRecords: %d\n", len(result.Records))
		fmt.Printf("Bookmark: %s\n", result.Summary.Bookmark)
		if len(result.Summary.Counters) > 0 {
			fmt.Printf("Counters: %v\n", result.Summary.Counters)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("database", "", "Database name to run the query against")
}
