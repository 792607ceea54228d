package main

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-catalog/internal/config"
	"library-catalog/internal/logging"
	"library-catalog/library"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:          "library",
		Short:        "Library catalog and lending tracker",
		Long:         "Records books and members, issues and returns loans, and computes overdue fines.\nWith no sub-command it starts the numbered menu.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			out := cmd.OutOrStdout()
			return withManager(cfg, out, cmd.ErrOrStderr(), func(mgr *library.LibraryManager) error {
				interactive := isTerminal(in)
				if interactive {
					fmt.Fprintln(out, "Welcome to the library catalog.")
				}
				return runMenu(in, out, mgr, interactive)
			})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Store, "store", cfg.Store, "storage backend: file or sqlite (env LIBRARY_STORE)")
	flags.StringVar(&cfg.BooksFile, "books", cfg.BooksFile, "books CSV file for the file store (env LIBRARY_BOOKS_FILE)")
	flags.StringVar(&cfg.MembersFile, "members", cfg.MembersFile, "members CSV file for the file store (env LIBRARY_MEMBERS_FILE)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database for the sqlite store (env LIBRARY_DB)")
	flags.StringVar(&cfg.LogPath, "log", cfg.LogPath, "also append logs to this file (env LIBRARY_LOG)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable debug logging (env LIBRARY_VERBOSE)")

	root.AddCommand(newListCmd(&cfg))
	return root
}

func newListCmd(cfg *config.Config) *cobra.Command {
	var asJSON, plain bool
	cmd := &cobra.Command{
		Use:       "list [books|available|members]",
		Short:     "Print books, available books or members and exit",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"books", "available", "members"},
		RunE: func(cmd *cobra.Command, args []string) error {
			what := "books"
			if len(args) == 1 {
				what = args[0]
			}
			out := cmd.OutOrStdout()
			return withManager(*cfg, out, cmd.ErrOrStderr(), func(mgr *library.LibraryManager) error {
				return printListing(out, mgr, what, asJSON, plain)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&plain, "plain", false, "print one untruncated line per record")
	cmd.MarkFlagsMutuallyExclusive("json", "plain")
	return cmd
}

func printListing(out io.Writer, mgr *library.LibraryManager, what string, asJSON, plain bool) error {
	var v any
	switch what {
	case "available":
		v = mgr.ListAvailable()
	case "members":
		v = mgr.ListMembers()
	default:
		v = mgr.ListBooks()
	}

	if asJSON {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", what, err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	switch items := v.(type) {
	case []library.Book:
		if len(items) == 0 {
			fmt.Fprintln(out, "No books to show.")
			return nil
		}
		if plain {
			printLines(out, items)
			return nil
		}
		printBooks(out, items)
	case []library.Member:
		if len(items) == 0 {
			fmt.Fprintln(out, "No members yet.")
			return nil
		}
		if plain {
			printLines(out, items)
			return nil
		}
		printMembers(out, items)
	}
	return nil
}

func printLines[T fmt.Stringer](out io.Writer, items []T) {
	for _, item := range items {
		fmt.Fprintln(out, item)
	}
}

// withManager sets up logging and the configured store, loads the catalog
// and hands the manager to fn. A failed load is reported and the session
// continues with an empty catalog.
func withManager(cfg config.Config, out, errOut io.Writer, fn func(*library.LibraryManager) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs stay off stdout, which belongs to the menu.
	logger, closeLog, err := logging.New(logging.Options{Stdout: errOut, Stderr: errOut, LogPath: cfg.LogPath, Verbose: cfg.Verbose})
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := library.OpenStore(library.StoreOptions{
		Kind:        cfg.Store,
		BooksPath:   cfg.BooksFile,
		MembersPath: cfg.MembersFile,
		DBPath:      cfg.DBPath,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to open store", "store", cfg.Store, "error", err)
		return err
	}

	mgr := library.NewLibraryManager(store, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	if err := mgr.Load(); err != nil {
		fmt.Fprintln(out, "Couldn't load data, starting fresh.")
	}
	return fn(mgr)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
