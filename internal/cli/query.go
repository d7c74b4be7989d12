package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/newsintel/internal/api/handlers"
)

var (
	searchTopK      int
	searchThreshold float64
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question answered from ingested news",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "List the passages most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of passages (server default when 0)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", -1, "minimum similarity (server default when negative)")
	rootCmd.AddCommand(queryCmd, searchCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	answer, err := apiClient().Query(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, answer)
	}

	cmd.Println(answer.Answer)
	if len(answer.Passages) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, p := range answer.Passages {
		cmd.Printf("  [%d] %s (%s)\n", i+1, p.Title, p.Source)
		if p.URL != "" {
			cmd.Printf("      %s\n", p.URL)
		}
	}
	if answer.Cached {
		cmd.Println("(cached)")
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := handlers.SearchRequest{Query: args[0], TopK: searchTopK}
	if searchThreshold >= 0 {
		req.Threshold = &searchThreshold
	}

	resp, err := apiClient().Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, resp)
	}

	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.ChunkID
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, r.Score)
		if r.Source != "" {
			cmd.Printf("      Source: %s\n", r.Source)
		}
		if r.Text != "" {
			cmd.Printf("      %s\n", snippet(r.Text, 160))
		}
	}
	return nil
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
