package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var libraryJSON bool

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List ingested books",
	Long:  `Lists the books recorded in the ingestion manifest, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runBooks,
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List vector store collections",
	Long:  `Lists vector store collections with their embedding dimensions and point counts.`,
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

func init() {
	booksCmd.Flags().BoolVar(&libraryJSON, "json", false, "output as JSON")
	collectionsCmd.Flags().BoolVar(&libraryJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(booksCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func runBooks(cmd *cobra.Command, _ []string) error {
	svc, err := libraryPort(cmd.Context())
	if err != nil {
		return err
	}

	books, err := svc.ListBooks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}

	if libraryJSON {
		return printJSON(cmd, books)
	}

	p := newPrinter(cmd)
	if len(books) == 0 {
		p.println("No books ingested yet. Run 'sercha-rag ingest <file>' to add one.")
		return nil
	}

	p.section("Books")
	for _, entry := range books {
		title := entry.Book.Title
		if entry.Book.Author != "" {
			title += " by " + entry.Book.Author
		}
		p.printf("  %s\n", p.label.Render(title))
		p.println(p.dim.Render(fmt.Sprintf("      %s | %s | %d chunks | %s | %s",
			entry.Collection, orDash(entry.Book.Domain), entry.ChunkCount,
			entry.IngestedAt.Format("2006-01-02 15:04"), entry.SourceID)))
	}
	return nil
}

func runCollections(cmd *cobra.Command, _ []string) error {
	svc, err := libraryPort(cmd.Context())
	if err != nil {
		return err
	}

	collections, err := svc.ListCollections(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	if libraryJSON {
		return printJSON(cmd, collections)
	}

	p := newPrinter(cmd)
	if len(collections) == 0 {
		p.println("No collections.")
		return nil
	}

	p.section("Collections")
	for _, c := range collections {
		p.printf("  %-24s %5d dims %8d points\n", c.Name, c.Dimensions, c.Points)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
