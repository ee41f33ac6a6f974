// Package main provides the ingestion CLI for the knowledge base.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rowanvale/recall/internal/embedding"
	"github.com/rowanvale/recall/internal/ingest"
	"github.com/rowanvale/recall/internal/normalize"
	"github.com/rowanvale/recall/internal/storage"
	"github.com/rowanvale/recall/internal/tags"
)

var rootCmd = &cobra.Command{
	Use:   "recall-sync",
	Short: "Knowledge base ingestion tool",
	Long:  "CLI tool for ingesting documents into the Recall knowledge base in Qdrant",
}

var (
	flagOwner     string
	flagSource    string
	flagFile      string
	flagDir       string
	flagNoTags    bool
	flagAllOwners bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest source payloads into the knowledge base",
	Long: `Reads source payload files and runs them through the full pipeline:
normalization, checksum deduplication, chunking, embedding, and storage.

Payload files are JSON exports in the shape of their source (google_docs,
notion, manual). Markdown files (.md) are ingested as obsidian notes
directly, no JSON wrapper needed.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings and tags (required)`,
	RunE: runIngest,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Complete vector writes for pending documents",
	Long: `Finds documents whose embedding step failed after the document was
stored and re-embeds their stored chunks to complete the index.`,
	RunE: runRepair,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base statistics",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored documents and recreate the collection",
	RunE:  runReset,
}

func init() {
	ingestCmd.Flags().StringVar(&flagOwner, "owner", "", "owner id the documents belong to (required)")
	ingestCmd.Flags().StringVar(&flagSource, "source", "obsidian", "source type: google_docs, notion, obsidian, manual")
	ingestCmd.Flags().StringVar(&flagFile, "file", "", "single payload file to ingest")
	ingestCmd.Flags().StringVar(&flagDir, "dir", "", "directory of payload files to ingest")
	ingestCmd.Flags().BoolVar(&flagNoTags, "no-tags", false, "skip tag generation")
	ingestCmd.MarkFlagRequired("owner")

	repairCmd.Flags().StringVar(&flagOwner, "owner", "", "owner id to repair")
	repairCmd.Flags().BoolVar(&flagAllOwners, "all", false, "repair pending documents for every owner")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	source := normalize.SourceType(flagSource)
	if !source.Valid() {
		return fmt.Errorf("unknown source type %q", flagSource)
	}
	if flagFile == "" && flagDir == "" {
		return fmt.Errorf("one of --file or --dir is required")
	}

	items, err := collectItems(flagOwner, source)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("Nothing to ingest")
		return nil
	}

	coordinator, store, err := buildCoordinator(ctx, !flagNoTags)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Ingesting %d documents...\n", len(items))
	fmt.Println()

	result := coordinator.IngestBatch(ctx, items)

	fmt.Println("Ingestion complete!")
	fmt.Printf("  Created:  %d\n", result.Created)
	fmt.Printf("  Existing: %d\n", result.Existing)
	fmt.Printf("  Skipped:  %d\n", result.Skipped)
	fmt.Printf("  Errors:   %d\n", result.Errors)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if result.Errors > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, item := range result.Items {
			if item.Status == ingest.StatusError {
				fmt.Printf("  - %s: %s\n", item.Title, item.Reason)
			}
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if flagOwner == "" && !flagAllOwners {
		return fmt.Errorf("one of --owner or --all is required")
	}

	coordinator, store, err := buildCoordinator(ctx, false)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Repairing pending documents...")
	repaired, err := coordinator.Repair(ctx, flagOwner)
	if repaired > 0 {
		fmt.Printf("Repaired %d documents\n", repaired)
	}
	if err != nil {
		return fmt.Errorf("repair incomplete: %w", err)
	}
	if repaired == 0 {
		fmt.Println("Nothing to repair")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := connectStore()
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.GetCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get counts: %w", err)
	}

	fmt.Println("Knowledge base status:")
	fmt.Printf("  Documents:       %d\n", counts.Documents)
	fmt.Printf("  Chunks:          %d\n", counts.Chunks)
	fmt.Printf("  Pending repair:  %d\n", counts.Pending)
	fmt.Printf("  Embedding model: %s\n", embedding.Model)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := connectStore()
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Clearing existing collection...")
	if err := store.ClearCollection(ctx); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	fmt.Println("Collection cleared")
	return nil
}

// collectItems builds ingestion items from --file or --dir. JSON files are
// source payloads as-is; .md files become obsidian payloads.
func collectItems(ownerID string, source normalize.SourceType) ([]ingest.Item, error) {
	var paths []string
	if flagFile != "" {
		paths = append(paths, flagFile)
	}
	if flagDir != "" {
		err := filepath.WalkDir(flagDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".json", ".md":
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", flagDir, err)
		}
	}

	items := make([]ingest.Item, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		itemSource := source
		payload := data
		if strings.EqualFold(filepath.Ext(path), ".md") {
			itemSource = normalize.SourceObsidian
			payload, err = json.Marshal(normalize.ObsidianPayload{
				Path:     path,
				Markdown: string(data),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", path, err)
			}
		}

		items = append(items, ingest.Item{
			OwnerID: ownerID,
			Source:  itemSource,
			Payload: payload,
		})
	}
	return items, nil
}

// buildCoordinator wires storage, embeddings, and optional tagging.
func buildCoordinator(ctx context.Context, withTags bool) (*ingest.Coordinator, *storage.Store, error) {
	store, err := connectStore()
	if err != nil {
		return nil, nil, err
	}

	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	var tagger ingest.Tagger
	if withTags {
		tagger = tags.NewGenerator(embeddingClient.Client(), slog.Default())
	}

	return ingest.NewCoordinator(store, embedder, tagger, slog.Default()), store, nil
}

func connectStore() (*storage.Store, error) {
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)

	store, err := storage.NewStore(qdrantHost, qdrantPort, embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return store, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
