package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/lazyval/pkg/store"
)

// defaultStorePath is used when neither --store nor LAZYVAL_STORE is set.
const defaultStorePath = "lazyval.db"

func newStoreCommand() *cobra.Command {
	var (
		dbPath   string
		storeDir string
	)

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and populate the path store",
		Long: `Manage the SQLite registry of valid store paths.

Derivations instantiated by "lazyval print --store" are registered here,
together with their outputs.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "store", "", "SQLite store database (default $LAZYVAL_STORE or lazyval.db)")
	cmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "store directory (default /nix/store)")

	resolve := func() string {
		if dbPath != "" {
			return dbPath
		}
		if env := os.Getenv("LAZYVAL_STORE"); env != "" {
			return env
		}
		return defaultStorePath
	}

	cmd.AddCommand(newStoreAddCommand(resolve, &storeDir))
	cmd.AddCommand(newStoreListCommand(resolve, &storeDir))

	return cmd
}

func newStoreAddCommand(dbPath func() string, storeDir *string) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a text file under NAME",
		Long: `Compute the store path of a text file with the given name and contents and
register it as valid. The printed path is the same every time for the
same name and contents.`,
		Example: `  # Register a text file
  lazyval store add hello.txt --text "hello world"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx, dbPath(), *storeDir)
			if err != nil {
				return err
			}
			defer db.Close()

			p, err := db.MakeTextPath(args[0], text)
			if err != nil {
				return err
			}
			if err := db.AddPath(ctx, &store.PathInfo{Path: p, NarSize: int64(len(text))}); err != nil {
				return err
			}

			log.Debug().Str("path", p.String()).Msg("Registered path")
			fmt.Fprintln(cmd.OutOrStdout(), db.PrintStorePath(p))
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "file contents")

	return cmd
}

func newStoreListCommand(dbPath func() string, storeDir *string) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List registered paths",
		Example: `  # List the first 20 paths
  lazyval store ls --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx, dbPath(), *storeDir)
			if err != nil {
				return err
			}
			defer db.Close()

			paths, err := db.ListPaths(ctx, limit, offset)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tDERIVER\tREGISTERED")
			for _, info := range paths {
				deriver := "-"
				if info.Deriver != nil {
					deriver = db.PrintStorePath(*info.Deriver)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					db.PrintStorePath(info.Path), deriver, info.RegisteredAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of paths")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of paths to skip")

	return cmd
}

// openStore opens and migrates the SQLite store at path.
func openStore(ctx context.Context, path, storeDir string) (*store.SQLiteStore, error) {
	db, err := store.NewSQLiteStore(store.Config{Path: path, StoreDir: storeDir})
	if err != nil {
		return nil, err
	}
	if err := db.Init(ctx); err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
