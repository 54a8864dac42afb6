package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/unchained-capital/connect/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "connect",
		Short: "CLI for the backend coordinator",
		Long: "This CLI lets you talk to a remote blockchain-indexing backend " +
			"to discover accounts of an extended public key, monitor their " +
			"activity, fetch transactions and broadcast signed ones",
		Version: formatVersion(),
	}
)

func init() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	rootCmd.AddCommand(coinInfoCmd, accountCmd, txCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
