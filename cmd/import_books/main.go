package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-catalog/internal/config"
	"library-catalog/internal/logging"
	"library-catalog/library"
)

func main() {
	if err := newImportCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	cfg := config.Load()
	var (
		manifest string
		reset    bool
	)

	cmd := &cobra.Command{
		Use:          "import_books",
		Short:        "Add every book listed in a manifest (isbn,title,author,copies) to the catalog",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, closeLog, err := logging.New(logging.Options{LogPath: cfg.LogPath, Verbose: cfg.Verbose})
			if err != nil {
				return err
			}
			defer closeLog()

			if reset {
				cleanup(cmd.OutOrStdout(), cfg)
			}
			return run(cmd.OutOrStdout(), cfg, manifest, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&manifest, "manifest", "books_manifest.csv", "CSV manifest with isbn,title,author,copies rows")
	flags.BoolVar(&reset, "reset", false, "delete the existing catalog data before importing")
	flags.StringVar(&cfg.Store, "store", cfg.Store, "storage backend: file or sqlite")
	flags.StringVar(&cfg.BooksFile, "books", cfg.BooksFile, "books CSV file for the file store")
	flags.StringVar(&cfg.MembersFile, "members", cfg.MembersFile, "members CSV file for the file store")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database for the sqlite store")
	return cmd
}

// cleanup removes the data files of the configured store.
func cleanup(out io.Writer, cfg config.Config) {
	fmt.Fprintln(out, "Cleaning up existing catalog data...")
	files := []string{cfg.BooksFile, cfg.MembersFile}
	if cfg.Store == library.StoreSQLite {
		files = []string{cfg.DBPath, cfg.DBPath + "-shm", cfg.DBPath + "-wal"}
	}
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Fprintln(out, "Cleanup complete.")
}

var errEmptyManifest = errors.New("manifest has no rows")

type manifestRow struct {
	line   int
	isbn   string
	title  string
	author string
	copies int
}

func readManifest(path string) ([]manifestRow, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	r.TrimLeadingSpace = true

	var rows []manifestRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		line, _ := r.FieldPos(0)
		if line == 1 && strings.EqualFold(rec[0], "isbn") {
			continue
		}
		copies, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: copies: %w", line, err)
		}
		rows = append(rows, manifestRow{
			line:   line,
			isbn:   strings.TrimSpace(rec[0]),
			title:  strings.TrimSpace(rec[1]),
			author: strings.TrimSpace(rec[2]),
			copies: copies,
		})
	}
}

func run(out io.Writer, cfg config.Config, manifest string, logger *slog.Logger) error {
	rows, err := readManifest(manifest)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", manifest, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("manifest %s: %w", manifest, errEmptyManifest)
	}

	store, err := library.OpenStore(library.StoreOptions{
		Kind:        cfg.Store,
		BooksPath:   cfg.BooksFile,
		MembersPath: cfg.MembersFile,
		DBPath:      cfg.DBPath,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	manager := library.NewLibraryManager(store, logger)
	defer manager.Close()

	if err := manager.Load(); err != nil {
		// An unreadable catalog must not be overwritten by a partial import.
		return fmt.Errorf("load catalog: %w", err)
	}

	fmt.Fprintf(out, "Importing books from %s...\n", manifest)
	successCount, errorCount := 0, 0
	for _, row := range rows {
		fmt.Fprintf(out, "Importing: %s by %s (%d)... ", row.title, row.author, row.copies)
		if !manager.AddOrUpdateBook(row.isbn, row.title, row.author, row.copies) {
			fmt.Fprintf(out, "ERROR - line %d rejected (empty ISBN or copies < 1)\n", row.line)
			errorCount++
			continue
		}
		fmt.Fprintln(out, "SUCCESS")
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d rows\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount == 0 {
		return nil
	}
	if err := manager.Save(); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	fmt.Fprintln(out, "\nCatalog now holds:")
	fmt.Fprintf(out, "%-15s %-40s %-25s %s\n", "ISBN", "Title", "Author", "Copies")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, book := range manager.ListBooks() {
		fmt.Fprintf(out, "%-15s %-40s %-25s %d\n", truncateString(book.ISBN, 15), truncateString(book.Title, 40), truncateString(book.Author, 25), book.Total)
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
