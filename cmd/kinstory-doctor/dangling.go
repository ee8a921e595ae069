package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/internal/storage"
)

func newDanglingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dangling",
		Short: "Report relationship and friendship edges that reference deleted people",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := checkDangling(runContext(cmd), opts.store, opts.events, opts.owner, opts.fix, cmd.OutOrStdout())
			return err
		},
	}
}

// checkDangling reports dangling edges and deletes them when fix is set.
// It returns the number of edges found.
func checkDangling(ctx context.Context, store storage.Store, events notifier, owner string, fix bool, out io.Writer) (int, error) {
	rels, err := store.DanglingRelationships(ctx, owner)
	if err != nil {
		return 0, err
	}
	friends, err := store.DanglingFriendships(ctx, owner)
	if err != nil {
		return 0, err
	}

	total := len(rels) + len(friends)
	if total == 0 {
		good.Fprintln(out, "No dangling edges found!")
		return 0, nil
	}

	warn.Fprintf(out, "Found %d dangling edge(s):\n", total)
	for _, e := range rels {
		fmt.Fprintf(out, "  owner %s: relationship %d (%d -> %d)\n", e.OwnerID, e.ID, e.ParentID, e.ChildID)
	}
	for _, e := range friends {
		fmt.Fprintf(out, "  owner %s: friendship %d (%d, %d)\n", e.OwnerID, e.ID, e.Person1ID, e.Person2ID)
	}
	if !fix {
		return total, nil
	}

	err = store.InTx(ctx, func(repo storage.Repository) error {
		for _, e := range rels {
			if err := repo.DeleteRelationshipByID(ctx, e.OwnerID, e.ID); err != nil {
				return err
			}
		}
		for _, e := range friends {
			if err := repo.DeleteFriendshipByID(ctx, e.OwnerID, e.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("delete dangling edges: %w", err)
	}
	for _, e := range rels {
		announce(out, events, engine.RelationshipDeleted, e.OwnerID, e.ID)
	}
	for _, e := range friends {
		announce(out, events, engine.FriendshipDeleted, e.OwnerID, e.ID)
	}
	good.Fprintf(out, "Deleted %d edge(s).\n", total)
	return total, nil
}
