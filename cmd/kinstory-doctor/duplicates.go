package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/internal/storage"
)

func newDuplicatesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "Report people whose canonical names differ only by case",
		Long: `Report groups of people in one owner scope whose canonical names are
equal ignoring case. With --fix each group is merged into its lowest id:
edges, story links and nicknames move over and the other names become
nicknames of the survivor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := checkDuplicates(runContext(cmd), opts.store, opts.events, opts.owner, opts.fix, cmd.OutOrStdout())
			return err
		},
	}
}

// checkDuplicates reports duplicate groups and merges them when fix is set.
// It returns the number of groups found.
func checkDuplicates(ctx context.Context, store storage.Store, events notifier, owner string, fix bool, out io.Writer) (int, error) {
	groups, err := store.DuplicatePeople(ctx, owner)
	if err != nil {
		return 0, err
	}
	if len(groups) == 0 {
		good.Fprintln(out, "No duplicate people found!")
		return 0, nil
	}

	warn.Fprintf(out, "Found %d duplicate group(s):\n", len(groups))
	for _, g := range groups {
		fmt.Fprintf(out, "  owner %s: %q ids %v\n", g.OwnerID, g.Name, g.IDs)
	}
	if !fix {
		return len(groups), nil
	}

	bold.Fprintln(out, "\nMerging duplicates...")
	for _, g := range groups {
		keep, drop := g.IDs[0], g.IDs[1:]
		if err := store.InTx(ctx, func(repo storage.Repository) error {
			return repo.MergePeople(ctx, g.OwnerID, keep, drop)
		}); err != nil {
			return len(groups), fmt.Errorf("merge %q for %s: %w", g.Name, g.OwnerID, err)
		}
		fmt.Fprintf(out, "  merged %v into %d\n", drop, keep)
		announce(out, events, engine.PersonUpdated, g.OwnerID, keep)
		for _, id := range drop {
			announce(out, events, engine.PersonDeleted, g.OwnerID, id)
		}
	}
	good.Fprintln(out, "Done.")
	return len(groups), nil
}

// announce reports a repair to a running server. A failure only warns: the
// store is already repaired.
func announce(out io.Writer, events notifier, t engine.EventType, owner string, id int64) {
	if err := events.Notify(t, owner, id); err != nil {
		warn.Fprintf(out, "  could not announce %s %d: %v\n", t, id, err)
	}
}
