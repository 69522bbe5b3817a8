package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/clientcli"
)

var (
	getOutput string
	getStdout bool
)

var getCmd = &cobra.Command{
	Use:     "get <remote-path> [local-path]",
	Aliases: []string{"download"},
	Short:   "Fetch a representation from the server",
	Long: `Fetch a representation from the server.

Without an extension in the remote path the server negotiates the
representation from --accept. The local file is named after the
representation the server picked unless a local path is given.

Examples:
  h2kv-cli get docs/readme.md
  h2kv-cli get --accept text/html docs/readme
  h2kv-cli get --stdout --accept application/json config | jq .
  h2kv-cli get -o ./out.html static/index`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output file path")
	getCmd.Flags().BoolVar(&getStdout, "stdout", false, "write to stdout")
}

func runGet(cmd *cobra.Command, args []string) error {
	opts := clientcli.GetOptions{
		RemotePath: args[0],
	}
	if len(args) > 1 {
		opts.LocalPath = args[1]
	}
	if getOutput != "" {
		opts.LocalPath = getOutput
	}
	if getStdout {
		opts.LocalPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Get(cmd.Context(), opts)
	if err != nil {
		return reportError(os.Stderr, err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(os.Stdout, reader); err != nil {
			return err
		}
		// Metadata goes to stderr so stdout stays the content.
		if jsonOutput {
			return getFormatter().FormatGet(os.Stderr, result)
		}
		return nil
	}

	return getFormatter().FormatGet(os.Stdout, result)
}
