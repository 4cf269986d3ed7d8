// Command questctl manages quest content and player progress in the
// WalkQuest database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/playperu/walkquest/internal/answer"
	"github.com/playperu/walkquest/internal/content"
	"github.com/playperu/walkquest/internal/database"
	"github.com/playperu/walkquest/internal/migrations"
	"github.com/playperu/walkquest/internal/quest"
	"github.com/playperu/walkquest/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "questctl",
		Short:         "Manage WalkQuest content and progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := os.Getenv("DB_PATH")
	if def == "" {
		def = "data/walkquest.db"
	}
	root.PersistentFlags().StringVar(&dbPath, "db", def, "SQLite database path")

	root.AddCommand(newImportCmd(&dbPath))
	root.AddCommand(newExportCmd(&dbPath))
	root.AddCommand(newListCmd(&dbPath))
	root.AddCommand(newProgressCmd(&dbPath))
	root.AddCommand(newResetCmd(&dbPath))
	root.AddCommand(newCheckCmd())
	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newHashKeyCmd())
	return root
}

// openStore opens and migrates the database. The caller closes the
// returned handle.
func openStore(ctx context.Context, path string) (*store.Store, *sql.DB, error) {
	db, err := database.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return store.New(db), db, nil
}

func newImportCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Validate and store quest documents (YAML or JSON)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			docs := make([]content.QuestDoc, 0, len(args))
			for _, path := range args {
				d, err := content.LoadFile(path)
				if err != nil {
					return err
				}
				docs = append(docs, d)
			}

			st, db, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, d := range docs {
				if err := st.PutQuest(ctx, d); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d spots)\n", d.ID, len(d.Spots))
			}
			return nil
		},
	}
}

func newExportCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export <quest-id>",
		Short: "Print a stored quest document as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, db, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			d, err := st.QuestDoc(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(d); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newListCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored quests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, db, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := st.ListQuests(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no quests")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAREA\tSPOTS")
			for _, q := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", q.ID, q.Title, q.AreaName, q.SpotCount)
			}
			return tw.Flush()
		},
	}
}

func newProgressCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <player-id>",
		Short: "Show a player's progress records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, db, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := st.ListProgress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no progress")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEST\tSTEP\tSTATUS\tUPDATED")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.QuestID, p.CurrentStep, p.Status, p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newResetCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <player-id> <quest-id>",
		Short: "Move a player back to the first spot of a quest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, db, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := st.UpsertProgress(cmd.Context(), args[0], args[1], 1, quest.StatusInProgress); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reset %s on %s\n", args[0], args[1])
			return nil
		},
	}
}

// newCheckCmd loads documents into an in-memory library and converts every
// quest the way a session would, without touching the database.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]...",
		Short: "Validate quest documents, or the bundled demo quests with no files",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := content.NewLibrary()
			if len(args) == 0 {
				docs, err := content.Demo()
				if err != nil {
					return err
				}
				lib = content.NewLibrary(docs...)
			}
			for _, path := range args {
				d, err := content.LoadFile(path)
				if err != nil {
					return err
				}
				if err := lib.Put(d); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSPOTS\tSTORIES\tBEATS")
			for _, d := range lib.Docs() {
				q, err := lib.Quest(cmd.Context(), d.ID)
				if err != nil {
					return fmt.Errorf("%s: %w", d.ID, err)
				}
				stories, beats := 0, len(q.Prologue)+len(q.Epilogue)
				for _, sp := range q.Spots {
					for _, st := range []quest.Story{sp.PreStory, sp.PostStory} {
						if st.IsPresent() {
							stories++
							beats += len(st.Beats())
						}
					}
				}
				_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", q.ID, len(q.Spots), stories, beats)
			}
			return w.Flush()
		},
	}
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <text>...",
		Short: "Print answers the way the judge compares them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", a, answer.Normalize(a))
			}
			return nil
		},
	}
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print a bcrypt hash for ADMIN_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
