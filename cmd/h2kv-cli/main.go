package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/clientcli"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	accept     string
	http1      bool
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "h2kv-cli",
	Version: version,
	Short:   "Client for h2kv servers",
	Long: `h2kv-cli - Client for h2kv servers

Paths address keys. A path with an extension names one representation;
a path without one lets the server pick a representation with the Accept
header:

  h2kv-cli put ./readme.md docs/readme.md
  h2kv-cli get --accept text/markdown docs/readme

Requests use HTTP/2, over cleartext for http:// endpoints. Use --http1 for
servers behind proxies that only speak HTTP/1.1.

Connection settings come from, in increasing precedence: the profile in
~/.h2kv/config.yaml, H2KV_ENDPOINT and H2KV_ACCEPT, and flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.h2kv/config.yaml, env: H2KV_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: H2KV_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: http://localhost:5928, env: H2KV_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&accept, "accept", "", "default Accept header (env: H2KV_ACCEPT)")
	rootCmd.PersistentFlags().BoolVar(&http1, "http1", false, "allow HTTP/1.1 instead of requiring HTTP/2")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

// getConfigPath returns the config file path from flag, env, or default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges config from the profile, env vars, and flags (flags take precedence).
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	profileName := profile
	if profileName == "" {
		profileName = clientcli.ProfileFromEnv()
	}
	explicit := cfgFile != "" || clientcli.ConfigPathFromEnv() != "" || profileName != ""

	file, err := clientcli.LoadConfigFile(getConfigPath())
	switch {
	case err == nil:
		p, profileErr := file.GetProfile(profileName)
		if profileErr != nil {
			// An empty config file is fine unless a profile was asked for.
			if profileName != "" || !errors.Is(profileErr, clientcli.ErrNoProfiles) {
				return nil, profileErr
			}
		} else {
			configs = append(configs, clientcli.ConfigFromProfile(p))
		}
	case explicit:
		return nil, fmt.Errorf("load config: %w", err)
	}

	configs = append(configs, clientcli.ConfigFromEnv(), &clientcli.Config{
		Endpoint: endpoint,
		Accept:   accept,
		HTTP1:    http1,
	})

	return clientcli.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg)
}

// exitError is returned when we want to exit with a specific code
// after the command already reported the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// reportError prints err with the configured formatter and returns an
// exitError so main does not print it again.
func reportError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return &exitError{code: 1}
}
