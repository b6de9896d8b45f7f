package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Drop folder references to artworks that are no longer saved",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.syncer.Reconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			if err := a.store.SetMetadata("last_reconcile_at", time.Now().Format(time.RFC3339)); err != nil {
				a.log.Warn("failed to record reconcile time", "err", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale folder reference(s)\n", removed)
			return nil
		},
	}
}
