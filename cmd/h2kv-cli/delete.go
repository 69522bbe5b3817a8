package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/clientcli"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <remote-path> [remote-path...]",
	Aliases: []string{"rm"},
	Short:   "Delete representations from the server",
	Long: `Delete one or more paths from the server.

A path with an extension deletes that representation; a path without one
deletes every representation of the key.

Examples:
  h2kv-cli delete docs/readme.md
  h2kv-cli delete docs/readme
  h2kv-cli delete -q old/a.txt old/b.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Paths: args})
	if err != nil {
		return reportError(os.Stderr, err)
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}
	return nil
}
