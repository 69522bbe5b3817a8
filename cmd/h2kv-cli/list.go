package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/clientcli"
)

var (
	listLimit  int
	listAll    bool
	listCursor string
)

var listCmd = &cobra.Command{
	Use:     "list [prefix]",
	Aliases: []string{"ls"},
	Short:   "List records on the server",
	Long: `List records on the server in key order. Every representation of a
key is listed on its own line.

Examples:
  h2kv-cli list
  h2kv-cli list docs/
  h2kv-cli list --limit 10 images/
  h2kv-cli list --all --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 100, "max results per page (max: 1000)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "fetch all pages")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "pagination cursor")
}

func runList(cmd *cobra.Command, args []string) error {
	opts := clientcli.ListOptions{
		Limit:  listLimit,
		Cursor: listCursor,
		All:    listAll,
	}
	if len(args) > 0 {
		opts.Prefix = args[0]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), opts)
	if err != nil {
		return reportError(os.Stderr, err)
	}

	return getFormatter().FormatList(os.Stdout, result)
}
