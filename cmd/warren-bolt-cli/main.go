// Command warren-bolt-cli is a small diagnostic tool for a Bolt server: it
// exercises the handshake, an auto-commit query, and routing-table discovery
// without needing a full application.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/warren-bolt/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warren-bolt-cli",
	Short: "Diagnostic CLI for a Bolt server",
	Long: `warren-bolt-cli talks directly to a Bolt server: it can run the
handshake and HELLO on their own, run one auto-commit query through the
full driver, or force a ROUTE call and print the resulting routing table.`,
	Version: Version,
}

var (
	Version = "dev"
	Commit  = "unknown"
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("warren-bolt-cli version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("user", "neo4j", "Basic auth principal")
	rootCmd.PersistentFlags().String("password", "", "Basic auth credentials (or set WARREN_BOLT_PASSWORD)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routesCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func credentials(cmd *cobra.Command) (user, password string) {
	user, _ = cmd.Flags().GetString("user")
	password, _ = cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("WARREN_BOLT_PASSWORD")
	}
	return user, password
}
