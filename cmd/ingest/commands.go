package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
	"github.com/timmy/pokedex/internal/source/catalog"
)

var profileCmd = &cobra.Command{
	Use:   "profile [url]",
	Short: "Scrape and publish one profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Push the static catalog file",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove a document from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	catalogFile  string
	catalogLimit int
)

func init() {
	catalogCmd.Flags().StringVarP(&catalogFile, "file", "f", "", "Catalog file (defaults to ingest.catalog_path)")
	catalogCmd.Flags().IntVarP(&catalogLimit, "limit", "l", 0, "Maximum number of entries to push (0 for all)")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	if err := components.Config.Dataset.Validate(); err != nil {
		return err
	}

	events := make(chan domain.JobEvent, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range events {
			cmd.Printf("  %s -> %s (attempt %d)\n", evt.From, evt.To, evt.Attempt)
		}
	}()

	result, err := components.Ingest.SubmitProfile(cmd.Context(), args[0], events)
	<-done
	if err != nil {
		return fmt.Errorf("%s: %w", domain.KindOf(err), err)
	}

	cmd.Println(result.Message)
	cmd.Printf("Document ID: %s\n", result.Document.DocumentID)
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	src := components.Catalog
	if catalogFile != "" {
		src = catalog.NewAdapter(catalogFile)
	}
	if src == nil {
		return errors.New("no catalog file: pass --file or set ingest.catalog_path")
	}

	stats, err := components.Ingest.PushCatalog(cmd.Context(), src, catalogLimit)
	if stats != nil {
		logger.With(logger.Fields{
			"total":     stats.TotalItems,
			"processed": stats.ProcessedItems,
			"failed":    stats.FailedItems,
		}).Info(cmd.Context(), "Catalog push finished")
		cmd.Printf("Pushed %d/%d entries (%d failed)\n",
			stats.ProcessedItems-stats.FailedItems, stats.TotalItems, stats.FailedItems)
	}
	return err
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := components.Ingest.RemoveDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("%s: %w", domain.KindOf(err), err)
	}
	cmd.Printf("Removed %s\n", args[0])
	return nil
}
