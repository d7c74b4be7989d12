package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	articlesCategory string
	articlesLimit    int
	articlesOffset   int
	trendsHours      int
	trendsLimit      int
)

var articlesCmd = &cobra.Command{
	Use:   "articles [id]",
	Short: "List recent articles or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArticles,
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show the most covered topics",
	Args:  cobra.NoArgs,
	RunE:  runTrends,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient().Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, stats)
		}
		cmd.Printf("vectors: %d\ndimension: %d\nembedder: %s\n", stats.Vectors, stats.Dimension, stats.Embedder)
		return nil
	},
}

func init() {
	articlesCmd.Flags().StringVarP(&articlesCategory, "category", "c", "", "only this category")
	articlesCmd.Flags().IntVarP(&articlesLimit, "limit", "n", 20, "maximum number of articles")
	articlesCmd.Flags().IntVar(&articlesOffset, "offset", 0, "articles to skip")
	trendsCmd.Flags().IntVar(&trendsHours, "hours", 24, "look-back window in hours")
	trendsCmd.Flags().IntVarP(&trendsLimit, "limit", "n", 20, "maximum number of topics")
	rootCmd.AddCommand(articlesCmd, trendsCmd, statsCmd)
}

func runArticles(cmd *cobra.Command, args []string) error {
	client := apiClient()

	if len(args) == 1 {
		a, err := client.Article(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get article: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, a)
		}
		cmd.Printf("%s\n%s | %s | %s\n\n%s\n", a.Title, a.Source, a.Category, a.SentimentLabel, a.Summary)
		return nil
	}

	articles, err := client.Articles(cmd.Context(), articlesCategory, articlesLimit, articlesOffset)
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, articles)
	}
	if len(articles) == 0 {
		cmd.Println("No articles.")
		return nil
	}
	for _, a := range articles {
		cmd.Printf("%s  %-12s %s\n", a.ID, a.Category, a.Title)
	}
	return nil
}

func runTrends(cmd *cobra.Command, args []string) error {
	trends, err := apiClient().Trends(cmd.Context(), trendsHours, trendsLimit)
	if err != nil {
		return fmt.Errorf("trends failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, trends)
	}
	if len(trends) == 0 {
		cmd.Println("No topics in this window.")
		return nil
	}
	for _, t := range trends {
		cmd.Printf("%-16s %4d articles  sentiment %+.2f\n", t.Topic, t.ArticleCount, t.AverageSentiment)
	}
	return nil
}
