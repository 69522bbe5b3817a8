package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/clientcli"
)

var headCmd = &cobra.Command{
	Use:   "head <remote-path>",
	Short: "Show metadata of a representation",
	Long: `Show the metadata of the representation the server negotiates for a
path, without fetching its content.

Examples:
  h2kv-cli head docs/readme
  h2kv-cli head --accept text/html --json static/index`,
	Args: cobra.ExactArgs(1),
	RunE: runHead,
}

func runHead(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	info, err := client.Head(cmd.Context(), clientcli.HeadOptions{RemotePath: args[0]})
	if err != nil {
		return reportError(os.Stderr, err)
	}

	return getFormatter().FormatHead(os.Stdout, info)
}
