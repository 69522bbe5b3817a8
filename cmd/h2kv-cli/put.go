package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/clientcli"
)

var (
	putRecursive   bool
	putContentType string
	putIfMatch     string
)

var putCmd = &cobra.Command{
	Use:     "put <local-path> [remote-path]",
	Aliases: []string{"upload"},
	Short:   "Store files on the server",
	Long: `Store files on the server.

The remote path extension selects the representation and, without
--content-type, its media type. The remote path defaults to the local
path. A new representation reports Created, a replaced one Updated.

Examples:
  h2kv-cli put ./readme.md docs/readme.md
  h2kv-cli put -r ./site/ static/
  h2kv-cli put --content-type application/json ./data config
  h2kv-cli put --if-match 3f2a... ./readme.md docs/readme.md`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

func init() {
	putCmd.Flags().BoolVarP(&putRecursive, "recursive", "r", false, "store a directory recursively")
	putCmd.Flags().StringVarP(&putContentType, "content-type", "t", "", "Content-Type of the representation")
	putCmd.Flags().StringVar(&putIfMatch, "if-match", "", "only overwrite when the current ETag matches")
}

func runPut(cmd *cobra.Command, args []string) error {
	opts := clientcli.PutOptions{
		LocalPath:   args[0],
		ContentType: putContentType,
		IfMatch:     putIfMatch,
		Recursive:   putRecursive,
	}
	if len(args) > 1 {
		opts.RemotePath = args[1]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Put(cmd.Context(), opts)
	if err != nil {
		return reportError(os.Stderr, err)
	}

	if err := getFormatter().FormatPut(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}
	return nil
}
