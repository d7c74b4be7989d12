package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/newsintel/internal/ingestion"
	"github.com/nikhilbhutani/newsintel/internal/models"
)

var (
	ingestSource   string
	ingestCategory string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Add articles to the index",
	Long: `Ingests local files or schedules a server-side ingestion run.

A .json file holds an array of documents with title, content, source and url
fields. Any other file (.txt, .md, .pdf, .docx) is uploaded and ingested as a
single article. With --source no files are read and the named server source
(for example "newsapi") is queued instead.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "queue an ingestion run for a server source")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "category for uploaded files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	client := apiClient()

	if ingestSource != "" {
		if len(args) > 0 {
			return errors.New("--source cannot be combined with files")
		}
		job, err := client.Enqueue(cmd.Context(), ingestSource)
		if err != nil {
			return fmt.Errorf("enqueue failed: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, job)
		}
		cmd.Printf("Queued ingestion of %s (task %s)\n", job.Source, job.TaskID)
		return nil
	}

	if len(args) == 0 {
		return errors.New("no files given; pass files or --source")
	}

	for _, path := range args {
		var (
			report *ingestion.Report
			err    error
		)
		if strings.EqualFold(filepath.Ext(path), ".json") {
			docs, rerr := readDocuments(path)
			if rerr != nil {
				return rerr
			}
			report, err = client.Ingest(cmd.Context(), docs)
		} else {
			report, err = client.Upload(cmd.Context(), path, ingestCategory)
		}
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		if outputJSON {
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			continue
		}
		cmd.Printf("%s: indexed %d, skipped %d, chunks %d\n", path, report.Indexed, report.Skipped, report.Chunks)
		for _, f := range report.Faults {
			cmd.Printf("  %s %s: %s\n", f.Stage, f.DocumentID, f.Error)
		}
	}
	return nil
}

func readDocuments(path string) ([]models.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []models.RawDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return docs, nil
}
