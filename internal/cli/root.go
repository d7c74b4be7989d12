package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var (
	serverURL  string
	authToken  string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "newsctl",
	Short: "Query and feed a newsintel server",
	Long: `newsctl is a command line client for the newsintel API. It asks grounded
questions over ingested news, runs similarity searches and pushes new articles
into the index.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("NEWSCTL_SERVER", defaultServer), "newsintel API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("NEWSCTL_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print raw JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func apiClient() *Client {
	return NewClient(serverURL, authToken)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
